package server

import (
	"html/template"
	"net/http"
)

var indexTmpl = template.Must(template.New("index").Parse(indexHTML))

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTmpl.Execute(w, map[string]string{"Title": s.cfg.Title}); err != nil {
		s.log.Error().Err(err).Msg("render index")
	}
}

func (s *Server) handleAppJS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	_, _ = w.Write([]byte(appJS))
}

const indexHTML = `<!doctype html>
<html>
<head>
  <meta charset="utf-8"/>
  <meta name="viewport" content="width=device-width,initial-scale=1"/>
  <title>{{.Title}}</title>
  <style>
    body { font-family: ui-sans-serif, system-ui, -apple-system, Segoe UI, Roboto, Arial; margin: 0; min-height: 100vh; display:flex; align-items:center; justify-content:center; background:#f4f5f7; }
    .card { width: 560px; max-width: 92vw; background:#fff; border-radius: 18px; padding: 28px; box-shadow: 0 8px 30px rgba(0,0,0,0.08); }
    h1 { margin: 0 0 18px; font-size: 22px; }
    input { width: 100%; box-sizing: border-box; font-size: 32px; letter-spacing: 6px; padding: 12px 14px; border-radius: 12px; border: 2px solid #ddd; }
    input:focus { outline: none; border-color: #111; }
    .status { margin-top: 16px; font-size: 14px; color:#666; }
    .status span { font-family: ui-monospace, SFMono-Regular, Menlo, Monaco, Consolas, monospace; color:#111; }
    .info-display { margin-top: 14px; min-height: 48px; padding: 12px 14px; border-radius: 12px; font-size: 18px; }
    .info-normal { background: rgba(24,165,88,0.08); border-left: 6px solid #18a558; }
    .info-error { background: rgba(214,69,69,0.08); border-left: 6px solid #d64545; color:#a12a2a; }
  </style>
</head>
<body>
  <div class="card">
    <h1>{{.Title}}</h1>
    <input id="barcodeInput" inputmode="numeric" autocomplete="off" autofocus/>
    <div class="status">Status: <span id="statusDisplay">…</span></div>
    <div id="infoDisplay" class="info-display info-normal"></div>
  </div>
  <script src="/app.js"></script>
</body>
</html>
`

const appJS = `(() => {
  const input = document.getElementById('barcodeInput');
  const statusDisplay = document.getElementById('statusDisplay');
  const infoDisplay = document.getElementById('infoDisplay');

  // Events older than what is on screen are dropped; a reconnect may
  // start over from a restarted server.
  let shown = 0;

  function render(ev) {
    if (typeof ev.version === 'number') {
      if (ev.version < shown) return;
      shown = ev.version;
    }
    statusDisplay.textContent = ev.label || ev.status || '';
    infoDisplay.textContent = ev.info || '';
    infoDisplay.className = 'info-display ' + (ev.error ? 'info-error' : 'info-normal');
  }

  async function post(path, body) {
    const res = await fetch(path, {
      method: 'POST',
      headers: { 'Content-Type': 'application/json' },
      body: body === undefined ? undefined : JSON.stringify(body),
    });
    if (!res.ok) throw new Error(path + ': ' + res.status);
    return res.status === 204 ? null : res.json();
  }

  // One request in flight; while waiting only the newest field value is
  // kept. A dispatched code consumes the value that was sent, so whatever
  // was typed after it stays in the field and goes out as a fresh change.
  let inflight = false;
  let pending = null;

  function send(raw) {
    if (inflight) { pending = raw; return; }
    inflight = true;
    post('/api/input', { value: raw })
      .then((res) => {
        if (res.dispatched) {
          const rest = input.value.startsWith(raw) ? input.value.slice(raw.length) : input.value;
          input.value = rest;
          pending = rest === '' ? null : rest;
        } else if (pending === null && input.value !== res.value) {
          input.value = res.value;
        }
      })
      .catch((err) => console.error(err))
      .finally(() => {
        inflight = false;
        if (pending !== null) {
          const next = pending;
          pending = null;
          send(next);
        }
      });
  }

  input.addEventListener('input', () => send(input.value));
  input.addEventListener('blur', () => { post('/api/blur').catch(() => {}); });
  input.addEventListener('focus', () => { post('/api/focus').catch(() => {}); });

  const es = new EventSource('/events');
  es.onopen = () => { shown = 0; };
  es.onmessage = (msg) => {
    let ev;
    try { ev = JSON.parse(msg.data); } catch (_) { return; }
    if (ev.type === 'display') render(ev);
    if (ev.type === 'focus' && document.activeElement !== input) input.focus();
  };

  input.focus();
})();
`
