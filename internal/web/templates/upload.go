// Package templates renders the HTML pages served by the web package.
package templates

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"
)

// UploadPageData parameterizes the upload page.
type UploadPageData struct {
	MaxFileSizeMB int64
	Extensions    []string
}

// UploadPage is the single-page client: pick a file, inspect its columns,
// start a split, poll the task and download the archive.
func UploadPage(data UploadPageData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		accept := strings.Join(data.Extensions, ",")
		_, err := fmt.Fprintf(w, uploadPageHTML,
			templ.EscapeString(accept),
			data.MaxFileSizeMB,
			templ.EscapeString(strings.Join(data.Extensions, ", ")),
		)
		return err
	})
}

const uploadPageHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Split a file by column</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 44rem; margin: 2rem auto; padding: 0 1rem; color: #1f2937; }
fieldset { border: 1px solid #d1d5db; border-radius: .5rem; padding: 1rem; margin-bottom: 1rem; }
label { display: block; margin: .5rem 0 .25rem; font-weight: 600; }
button { margin-top: 1rem; padding: .5rem 1rem; }
#status { white-space: pre-wrap; background: #f3f4f6; padding: .75rem; border-radius: .5rem; }
.error { color: #b91c1c; }
</style>
</head>
<body>
<h1>Split a file by column</h1>
<form id="split-form">
<fieldset>
<label for="file">File</label>
<input id="file" name="file" type="file" accept="%s" required>
<p>Up to %d MB. Supported: %s</p>
<label for="column_name">Column</label>
<select id="column_name" name="column_name" required disabled></select>
<label for="batch_size">Rows per file (optional)</label>
<input id="batch_size" name="batch_size" type="number" min="1">
<button type="submit" disabled>Split</button>
</fieldset>
</form>
<div id="status"></div>
<script>
(function () {
  const form = document.getElementById("split-form");
  const fileInput = document.getElementById("file");
  const columns = document.getElementById("column_name");
  const submit = form.querySelector("button");
  const status = document.getElementById("status");

  function show(text, isError) {
    status.textContent = text;
    status.className = isError ? "error" : "";
  }

  async function call(url, body) {
    const resp = await fetch(url, body ? { method: "POST", body: body } : {});
    const json = await resp.json();
    if (!resp.ok) throw new Error(json.message + (json.action ? " " + json.action : "") + " (" + json.code + ")");
    return json;
  }

  fileInput.addEventListener("change", async function () {
    columns.innerHTML = "";
    columns.disabled = submit.disabled = true;
    if (!fileInput.files.length) return;
    const body = new FormData();
    body.append("file", fileInput.files[0]);
    try {
      const info = await call("/api/inspect", body);
      for (const name of info.columns) {
        const opt = document.createElement("option");
        opt.value = opt.textContent = name;
        columns.appendChild(opt);
      }
      columns.disabled = submit.disabled = false;
      show(info.total_rows + " rows, " + info.columns.length + " columns", false);
    } catch (err) {
      show(err.message, true);
    }
  });

  async function poll(id) {
    const task = await call("/api/tasks/" + encodeURIComponent(id));
    if (task.status === "completed") {
      show(task.total_rows + " rows split into " + task.output_files + " files.", false);
      const link = document.createElement("a");
      link.href = "/api/tasks/" + encodeURIComponent(id) + "/download";
      link.textContent = " Download archive";
      status.appendChild(link);
      return;
    }
    if (task.status === "error") {
      show(task.error_message, true);
      return;
    }
    show("Task " + task.status + "...", false);
    setTimeout(function () { poll(id).catch(function (err) { show(err.message, true); }); }, 1000);
  }

  form.addEventListener("submit", async function (ev) {
    ev.preventDefault();
    submit.disabled = true;
    try {
      const accepted = await call("/api/split", new FormData(form));
      await poll(accepted.task_id);
    } catch (err) {
      show(err.message, true);
    } finally {
      submit.disabled = false;
    }
  });
})();
</script>
</body>
</html>
`
