package report

import (
	"html/template"
	"time"
)

var htmlTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"ms": func(d time.Duration) int64 { return d.Milliseconds() },
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Prompt Test Report</title>
<style>
  body { font-family: -apple-system, "Segoe UI", sans-serif; margin: 2rem auto; max-width: 960px; color: #1f2430; }
  h1 { font-size: 1.4rem; }
  .stats { display: flex; gap: 1.5rem; margin: 1rem 0; }
  .stat { padding: .75rem 1.25rem; border-radius: 8px; background: #f4f5f7; }
  .stat b { display: block; font-size: 1.3rem; }
  .bar { height: 10px; border-radius: 5px; background: #e45858; overflow: hidden; margin-bottom: 1.5rem; }
  .bar span { display: block; height: 100%; background: #3cb371; }
  table { border-collapse: collapse; width: 100%; margin-bottom: 2rem; }
  th, td { text-align: left; padding: .4rem .6rem; border-bottom: 1px solid #e3e5e8; font-size: .9rem; }
  .passed { color: #2e8b57; font-weight: 600; }
  .failed { color: #c0392b; font-weight: 600; }
  .errored { color: #b8860b; font-weight: 600; }
  .skipped { color: #7f8c8d; }
  .detail { color: #6b7280; font-size: .8rem; }
  footer { color: #9aa0a6; font-size: .8rem; }
</style>
</head>
<body>
<h1>Prompt Test Report</h1>
<div class="stats">
  <div class="stat"><b>{{.Summary.TotalCases}}</b>cases</div>
  <div class="stat"><b class="passed">{{.Summary.Passed}}</b>passed</div>
  <div class="stat"><b class="failed">{{.Summary.Failed}}</b>failed</div>
  <div class="stat"><b class="errored">{{.Summary.Errored}}</b>errored</div>
  <div class="stat"><b>${{printf "%.4f" .Summary.TotalCostUSD}}</b>cost</div>
  <div class="stat"><b>{{.Summary.TotalTokens}}</b>tokens</div>
</div>
<div class="bar"><span style="width: {{printf "%.1f" .PassPct}}%"></span></div>
{{range .Summary.Tests}}
<h2>{{.TestID}}</h2>
<p class="detail">p50 {{ms .LatencyP50}}ms &middot; p95 {{ms .LatencyP95}}ms &middot; max {{ms .LatencyMax}}ms &middot; ${{printf "%.4f" .TotalCostUSD}}</p>
<table>
  <tr><th>#</th><th>Input</th><th>Status</th><th>Latency</th><th>Attempts</th><th>Assertions</th></tr>
  {{range .Cases}}
  <tr>
    <td>{{.Ordinal}}</td>
    <td>{{.InputLabel}}</td>
    <td class="{{.Status}}">{{.Status}}</td>
    <td>{{ms .Latency}}ms</td>
    <td>{{.Attempts}}</td>
    <td>
      {{range .Verdicts}}<div class="{{if .Passed}}passed{{else}}failed{{end}}">{{.Label}}{{if .Detail}} <span class="detail">{{.Detail}}</span>{{end}}</div>{{end}}
      {{if .Err}}<div class="detail">{{.Err}}</div>{{end}}
    </td>
  </tr>
  {{end}}
</table>
{{end}}
<footer>Generated {{.GeneratedAt}} in {{ms .Summary.Duration}}ms</footer>
</body>
</html>
`))
