package core

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"
)

func splitFixture() *Dataset {
	ds, _ := newDataset(
		[]string{"id", "dept"},
		[][]string{
			{"1", "eng"},
			{"2", "ops"},
			{"3", "eng"},
			{"4", ""},
			{"5", "eng"},
			{"6", "sales"},
			{"7", "eng"},
			{"8", "ops"},
			{"9", "eng"},
		},
	)
	return ds
}

func groupIDs(g RowGroup) []string {
	out := make([]string, len(g.Rows))
	for i, r := range g.Rows {
		out[i] = r[0].String()
	}
	return out
}

func TestSplit_StableGroups(t *testing.T) {
	groups, err := Split(context.Background(), splitFixture(), "dept", 0)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}

	want := []struct {
		key string
		ids []string
	}{
		{"eng", []string{"1", "3", "5", "7", "9"}},
		{"ops", []string{"2", "8"}},
		{EmptyGroupKey, []string{"4"}},
		{"sales", []string{"6"}},
	}
	if len(groups) != len(want) {
		t.Fatalf("groups = %d, want %d", len(groups), len(want))
	}
	for i, w := range want {
		if groups[i].Key != w.key {
			t.Errorf("group %d key = %q, want %q", i, groups[i].Key, w.key)
		}
		if got := groupIDs(groups[i]); !equalStrings(got, w.ids) {
			t.Errorf("group %q ids = %q, want %q", w.key, got, w.ids)
		}
	}
}

func TestSplit_BatchCap(t *testing.T) {
	groups, err := Split(context.Background(), splitFixture(), "dept", 2)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}

	wantKeys := []string{"eng_batch_1", "eng_batch_2", "eng_batch_3", "ops", EmptyGroupKey, "sales"}
	keys := make([]string, len(groups))
	for i, g := range groups {
		keys[i] = g.Key
		if len(g.Rows) > 2 {
			t.Errorf("group %q has %d rows, cap is 2", g.Key, len(g.Rows))
		}
	}
	if !equalStrings(keys, wantKeys) {
		t.Errorf("keys = %q, want %q", keys, wantKeys)
	}

	var eng []string
	for _, g := range groups[:3] {
		eng = append(eng, groupIDs(g)...)
	}
	if !equalStrings(eng, []string{"1", "3", "5", "7", "9"}) {
		t.Errorf("concatenated eng batches = %q", eng)
	}
}

func TestSplit_NumericKeys(t *testing.T) {
	ds, _ := newDataset([]string{"code"}, [][]string{{"10"}, {"2.50"}, {"10"}})
	groups, err := Split(context.Background(), ds, "code", 0)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(groups) != 2 || groups[0].Key != "10" || groups[1].Key != "2.50" {
		t.Errorf("groups = %+v", groups)
	}
}

func TestSplit_Errors(t *testing.T) {
	ds := splitFixture()
	if _, err := Split(context.Background(), ds, "missing", 0); !errors.Is(err, ErrSchema) {
		t.Errorf("missing column err = %v, want schema error", err)
	}
	if _, err := Split(context.Background(), ds, "dept", -1); !errors.Is(err, ErrSchema) {
		t.Errorf("negative batch err = %v, want schema error", err)
	}
}

// Every row lands in exactly one group for any batch size.
func TestSplit_Partition(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	records := make([][]string, 200)
	for i := range records {
		v := ""
		if n := rng.Intn(8); n > 0 {
			v = fmt.Sprintf("k%d", n)
		}
		records[i] = []string{fmt.Sprint(i), v}
	}
	ds, err := newDataset([]string{"id", "key"}, records)
	if err != nil {
		t.Fatal(err)
	}

	for _, batch := range []int{0, 1, 3, 7, 50, 500} {
		t.Run(fmt.Sprintf("batch=%d", batch), func(t *testing.T) {
			groups, err := Split(context.Background(), ds, "key", batch)
			if err != nil {
				t.Fatalf("Split: %v", err)
			}
			seen := make(map[string]int)
			for _, g := range groups {
				if batch > 0 && len(g.Rows) > batch {
					t.Errorf("group %q has %d rows > %d", g.Key, len(g.Rows), batch)
				}
				for _, id := range groupIDs(g) {
					seen[id]++
				}
			}
			if len(seen) != len(records) {
				t.Errorf("rows covered = %d, want %d", len(seen), len(records))
			}
			for id, n := range seen {
				if n != 1 {
					t.Errorf("row %s appears %d times", id, n)
				}
			}
		})
	}
}
