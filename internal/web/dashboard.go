// Package web serves the built-in monitoring dashboard.
package web

import "net/http"

// ServeDashboard serves the embedded dashboard page
func ServeDashboard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")

	w.Write([]byte(dashboardHTML))
}

// dashboardHTML is a self-contained page that tails the event stream over
// the /ws endpoint. Payloads carry aggregate statistics only, so the page
// never renders cell values.
const dashboardHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>PII-Sentinel</title>
<style>
  body { font-family: -apple-system, "Segoe UI", sans-serif; margin: 2rem; background: #0d1117; color: #c9d1d9; }
  h1 { font-size: 1.3rem; }
  #status { font-size: 0.85rem; color: #8b949e; }
  #events { list-style: none; padding: 0; }
  #events li { padding: 0.4rem 0.6rem; margin: 0.3rem 0; background: #161b22; border-left: 3px solid #58a6ff; font-family: monospace; font-size: 0.85rem; }
  #events li.scan { border-color: #3fb950; }
  #events li.anonymization { border-color: #d29922; }
</style>
</head>
<body>
<h1>PII-Sentinel</h1>
<p id="status">connecting&hellip;</p>
<ul id="events"></ul>
<script>
  const status = document.getElementById("status");
  const list = document.getElementById("events");
  const ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws");
  ws.onopen = () => { status.textContent = "connected"; };
  ws.onclose = () => { status.textContent = "disconnected"; };
  ws.onmessage = (msg) => {
    const event = JSON.parse(msg.data);
    const li = document.createElement("li");
    if (event.type === "scan_completed") li.className = "scan";
    if (event.type === "anonymization_completed") li.className = "anonymization";
    li.textContent = event.timestamp + " " + event.type + " " + JSON.stringify(event.data);
    list.prepend(li);
    while (list.children.length > 100) list.removeChild(list.lastChild);
  };
</script>
</body>
</html>
`
