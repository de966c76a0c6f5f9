package web

import (
	"fmt"
	"net/http"
)

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, indexHTML)
}

// Portfolio value chart fed by the snapshot stream, plus headline metrics.
const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <title>Folio</title>
  <script src="https://cdn.jsdelivr.net/npm/chart.js"></script>
  <link href="https://fonts.googleapis.com/css2?family=Space+Mono:wght@400;700&display=swap" rel="stylesheet">
  <style>
    :root { --bg:#ffffff; --ink:#111111; --ink-soft:#9c9c9c; --panel:#f6f6f6; --up:#1a7f37; --down:#cf222e; }
    * { box-sizing:border-box; }
    body { margin:0; padding:2rem; background:var(--bg); color:var(--ink); font-family:'Space Mono',monospace; }
    #app { width:min(1200px, 96vw); margin:0 auto; background:var(--panel); border:3px solid var(--ink);
           padding:2rem; box-shadow:12px 12px 0 rgba(0,0,0,.15); display:grid; grid-template-columns:1fr 320px; gap:2rem; }
    h1 { margin:0 0 1rem; font-size:1.4rem; letter-spacing:.1em; }
    .stat { border:2px solid var(--ink); padding:.75rem 1rem; margin-bottom:1rem; background:var(--bg); }
    .stat .label { font-size:.7rem; color:var(--ink-soft); text-transform:uppercase; }
    .stat .value { font-size:1.3rem; font-weight:700; }
    .up { color:var(--up); } .down { color:var(--down); }
    table { width:100%; border-collapse:collapse; font-size:.8rem; }
    td { padding:.25rem 0; border-bottom:1px dashed var(--ink-soft); }
    td.num { text-align:right; }
  </style>
</head>
<body>
<div id="app">
  <div>
    <h1>FOLIO</h1>
    <canvas id="valueChart" height="320"></canvas>
  </div>
  <div>
    <div class="stat"><div class="label">Total value</div><div class="value" id="total">-</div></div>
    <div class="stat"><div class="label">TWR (30d)</div><div class="value" id="twr30">-</div></div>
    <div class="stat"><div class="label">P&amp;L (all time)</div><div class="value" id="pnl">-</div></div>
    <div class="stat"><div class="label">Holdings</div><table id="holdings"></table></div>
  </div>
</div>
<script>
  const fmtUSD = v => '$' + Number(v).toLocaleString(undefined, {minimumFractionDigits:2, maximumFractionDigits:2});
  const signClass = v => Number(v) >= 0 ? 'up' : 'down';

  const chart = new Chart(document.getElementById('valueChart'), {
    type: 'line',
    data: { labels: [], datasets: [{ label: 'Portfolio USD', data: [], borderColor: '#111', pointRadius: 0, tension: .2 }] },
    options: { animation: false, plugins: { legend: { display: false } } }
  });

  function setStat(id, text, value) {
    const el = document.getElementById(id);
    el.textContent = text;
    el.className = 'value' + (value === undefined ? '' : ' ' + signClass(value));
  }

  function renderBalances(data) {
    setStat('total', fmtUSD(data.total_value_usd));
    const rows = (data.balances || []).map(b =>
      '<tr><td>' + b.asset + '</td><td class="num">' + fmtUSD(b.usd_value) + '</td></tr>');
    document.getElementById('holdings').innerHTML = rows.join('');
  }

  async function refreshMetrics() {
    const twr = await fetch('/api/performance/twr/30').then(r => r.json());
    if (twr.error) setStat('twr30', 'n/a'); else setStat('twr30', Number(twr.twr_percent).toFixed(2) + '%', twr.twr_percent);
    const pnl = await fetch('/api/performance/pnl/0').then(r => r.json());
    if (pnl.error) setStat('pnl', 'n/a'); else setStat('pnl', fmtUSD(pnl.pnl) + ' (' + Number(pnl.pnl_percent).toFixed(2) + '%)', pnl.pnl);
  }

  fetch('/api/portfolio/balances').then(r => r.json()).then(d => { if (!d.error) renderBalances(d); });
  refreshMetrics();

  const source = new EventSource('/api/performance/snapshots/stream');
  source.addEventListener('snapshot', e => {
    const s = JSON.parse(e.data);
    chart.data.labels.push(new Date(s.ts).toLocaleString());
    chart.data.datasets[0].data.push(Number(s.total_value_usd));
    chart.update();
    refreshMetrics();
  });
  source.addEventListener('balances', e => renderBalances(JSON.parse(e.data)));
  source.addEventListener('cashflow', () => refreshMetrics());
</script>
</body>
</html>
`
