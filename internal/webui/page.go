package webui

const indexHTML = `<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>formforge</title>
  <style>
    body { font-family: "Segoe UI", sans-serif; margin: 0; background: linear-gradient(145deg,#f7fafc,#e9eef7); color: #1f2937; }
    .wrap { max-width: 1100px; margin: 0 auto; padding: 20px; display: flex; gap: 16px; }
    .panel { background: #fff; border-radius: 12px; box-shadow: 0 8px 30px rgba(15,23,42,.08); padding: 16px; flex: 1; }
    #log { min-height: 320px; max-height: 60vh; overflow: auto; white-space: pre-wrap; border: 1px solid #d1d5db; border-radius: 8px; padding: 12px; background: #f9fafb; }
    #preview { min-height: 320px; max-height: 60vh; overflow: auto; }
    .field { border: 1px solid #d1d5db; border-radius: 8px; padding: 10px; margin-bottom: 8px; background: #f9fafb; }
    .field b { display: block; }
    .field small { color: #6b7280; }
    .row { display: flex; gap: 8px; margin-top: 10px; }
    input { flex: 1; padding: 10px; border: 1px solid #cbd5e1; border-radius: 8px; }
    button { padding: 10px 16px; border: 0; border-radius: 8px; background: #0f766e; color: #fff; cursor: pointer; }
    button:hover { background: #0d9488; }
    button.alt { background: #9ca3af; }
  </style>
</head>
<body>
  <div class="wrap">
    <div class="panel">
      <h2>Describe your form</h2>
      <div id="log"></div>
      <div class="row">
        <input id="msg" placeholder="e.g. add a required text field for name" />
        <button id="send">Send</button>
        <button id="reset" class="alt">Reset</button>
      </div>
    </div>
    <div class="panel">
      <h2>Form preview</h2>
      <div id="preview"></div>
    </div>
  </div>
  <script>
    const log = document.getElementById('log');
    const msg = document.getElementById('msg');
    const preview = document.getElementById('preview');
    const append = (role, text) => { log.textContent += role + ': ' + text + '\n\n'; log.scrollTop = log.scrollHeight; };

    function render(formData) {
      preview.innerHTML = '';
      const fields = (formData && formData.fields) || [];
      if (!fields.length) { preview.textContent = 'No fields yet.'; return; }
      for (const f of fields) {
        const div = document.createElement('div');
        div.className = 'field';
        const opts = f.options ? ' [' + f.options.map(o => o.label).join(', ') + ']' : '';
        div.innerHTML = '<b></b><small></small>';
        div.querySelector('b').textContent = f.label;
        div.querySelector('small').textContent = f.name + ' · ' + f.type + (f.required ? ' · required' : ' · optional') + opts;
        preview.appendChild(div);
      }
    }

    let sessionId = null;
    async function session() {
      if (sessionId) return sessionId;
      const resp = await fetch('/api/session', { method: 'POST' });
      sessionId = (await resp.json()).session_id;
      return sessionId;
    }

    async function sendMessage() {
      const text = msg.value.trim();
      if (!text) return;
      append('You', text);
      msg.value = '';
      const resp = await fetch('/api/revise', {
        method: 'POST',
        headers: { 'Content-Type': 'application/json', 'X-Session-ID': await session() },
        body: JSON.stringify({ instruction: text })
      });
      const data = await resp.json();
      if (resp.ok) { append('formforge', data.message); render(data.form_data); }
      else { append('error', data.error || 'revision failed'); }
    }

    async function resetForm() {
      const resp = await fetch('/api/reset', { method: 'POST', headers: { 'X-Session-ID': await session() } });
      const data = await resp.json();
      append('formforge', 'Form reset.');
      render(data.form_data);
    }

    document.getElementById('send').addEventListener('click', sendMessage);
    document.getElementById('reset').addEventListener('click', resetForm);
    msg.addEventListener('keydown', (e) => { if (e.key === 'Enter') sendMessage(); });
    render(null);
  </script>
</body>
</html>`
