package report

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/devicelab-dev/appium-pom/pkg/core"
)

// HTMLConfig contains configuration for HTML report generation.
type HTMLConfig struct {
	OutputPath  string // Path to write the HTML file (default: <dir>/report.html)
	EmbedAssets bool   // Embed screenshots as base64 (makes file larger but portable)
	Title       string // Report title (default: "Test Report")
}

// GenerateHTML renders report.html from the report.json in dir.
func GenerateHTML(dir string, cfg HTMLConfig) error {
	result, err := ReadReport(dir)
	if err != nil {
		return fmt.Errorf("read report: %w", err)
	}

	if cfg.Title == "" {
		cfg.Title = "Test Report"
	}
	if cfg.OutputPath == "" {
		cfg.OutputPath = filepath.Join(dir, "report.html")
	}

	html, err := renderHTML(buildHTMLData(result, cfg))
	if err != nil {
		return fmt.Errorf("render html: %w", err)
	}
	if err := os.WriteFile(cfg.OutputPath, []byte(html), 0o644); err != nil {
		return fmt.Errorf("write html: %w", err)
	}
	return nil
}

// HTMLData contains all data needed for the HTML template.
type HTMLData struct {
	Title         string
	GeneratedAt   string
	Suite         *core.SuiteResult
	Cases         []CaseHTMLData
	TotalDuration string
	PassRate      float64
}

// CaseHTMLData contains case data formatted for HTML.
type CaseHTMLData struct {
	core.CaseResult
	StatusClass string
	DurationStr string
	Screenshots []template.URL // data URIs or paths
}

func buildHTMLData(result *core.SuiteResult, cfg HTMLConfig) HTMLData {
	cases := make([]CaseHTMLData, 0, len(result.Cases))
	for _, c := range result.Cases {
		cd := CaseHTMLData{
			CaseResult:  c,
			StatusClass: c.Status.String(),
			DurationStr: formatDuration(c.Duration),
		}
		for _, a := range c.Attachments {
			if a.Name != core.AttachmentScreenshot {
				continue
			}
			src := a.Path
			if cfg.EmbedAssets {
				src = loadAsBase64(a.Path)
			}
			if src != "" {
				cd.Screenshots = append(cd.Screenshots, template.URL(src)) //#nosec G203 -- local screenshot or data URI built here
			}
		}
		cases = append(cases, cd)
	}

	var passRate float64
	if result.TotalCases > 0 {
		passRate = float64(result.PassedCases) / float64(result.TotalCases) * 100
	}

	return HTMLData{
		Title:         cfg.Title,
		GeneratedAt:   time.Now().Format("2006-01-02 15:04:05"),
		Suite:         result,
		Cases:         cases,
		TotalDuration: formatDuration(result.Duration),
		PassRate:      passRate,
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
}

func loadAsBase64(path string) string {
	data, err := os.ReadFile(path) //#nosec G304 -- attachment path recorded by the runner
	if err != nil {
		return ""
	}
	ext := strings.ToLower(filepath.Ext(path))
	mimeType := core.ContentTypePNG
	if ext == ".jpg" || ext == ".jpeg" {
		mimeType = "image/jpeg"
	}
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))
}

func renderHTML(data HTMLData) (string, error) {
	tmpl, err := template.New("report").Parse(htmlTemplate)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    <style>
        :root {
            --bg-secondary: #f9fafb;
            --text-secondary: rgb(75, 85, 99);
            --border-color: #e5e7eb;
            --passed: #22c55e;
            --failed: #ef4444;
            --errored: #f97316;
            --skipped: #eab308;
        }
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; margin: 0; line-height: 1.5; }
        .header { background: var(--bg-secondary); border-bottom: 1px solid var(--border-color); padding: 16px 24px; }
        .header h1 { font-size: 18px; margin: 0; }
        .meta { font-size: 12px; color: var(--text-secondary); }
        .summary { display: flex; gap: 24px; padding: 16px 24px; }
        .summary div { font-size: 14px; }
        table { border-collapse: collapse; width: calc(100% - 48px); margin: 0 24px; }
        th, td { text-align: left; padding: 8px; border-bottom: 1px solid var(--border-color); font-size: 14px; vertical-align: top; }
        .status { font-weight: 600; text-transform: uppercase; font-size: 12px; }
        .passed { color: var(--passed); }
        .failed { color: var(--failed); }
        .errored { color: var(--errored); }
        .skipped { color: var(--skipped); }
        .error { font-family: monospace; font-size: 12px; color: var(--text-secondary); white-space: pre-wrap; }
        img.shot { max-width: 240px; border: 1px solid var(--border-color); margin-top: 8px; }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.Title}}: {{.Suite.Name}}</h1>
        <div class="meta">
            Run {{.Suite.RunID}} &middot; generated {{.GeneratedAt}}
            {{with .Suite.PlatformInfo}}&middot; {{.Platform}} {{.OSVersion}} on {{.DeviceName}}{{end}}
        </div>
    </div>
    <div class="summary">
        <div>Total: <b>{{.Suite.TotalCases}}</b></div>
        <div class="passed">Passed: <b>{{.Suite.PassedCases}}</b></div>
        <div class="failed">Failed: <b>{{.Suite.FailedCases}}</b></div>
        <div class="skipped">Skipped: <b>{{.Suite.SkippedCases}}</b></div>
        <div>Pass rate: <b>{{printf "%.0f" .PassRate}}%</b></div>
        <div>Duration: <b>{{.TotalDuration}}</b></div>
    </div>
    <table>
        <thead><tr><th>Case</th><th>Status</th><th>Duration</th><th>Details</th></tr></thead>
        <tbody>
        {{range .Cases}}
            <tr class="case" data-status="{{.StatusClass}}">
                <td>{{.Name}}</td>
                <td class="status {{.StatusClass}}">{{.Status}}</td>
                <td>{{.DurationStr}}</td>
                <td>
                    {{if .Message}}<div>{{.Message}}</div>{{end}}
                    {{if .Error}}<div class="error">{{.Error}}</div>{{end}}
                    {{range .Screenshots}}<img class="shot" src="{{.}}" alt="screenshot">{{end}}
                </td>
            </tr>
        {{end}}
        </tbody>
    </table>
</body>
</html>
`
