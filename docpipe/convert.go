package docpipe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Converter describes one external conversion capability. Availability is
// probed independently of any specific file, so "tool not installed" stays
// distinguishable from "tool failed on this file".
type Converter struct {
	Name string

	// Available reports whether the underlying program is reachable at
	// all. Unavailable converters are skipped, not counted as failures.
	Available func() bool

	// Run converts src into outDir and returns the produced file path.
	// The context carries the per-attempt timeout.
	Run func(ctx context.Context, src, outDir string) (string, error)
}

// convert drives the conversion chain for a legacy spreadsheet file. On
// success it returns the produced modern-container path plus a cleanup
// func the caller must run on every exit path. Each attempt gets its own
// wall-clock bound; a timeout fails that attempt only and the chain moves
// on. Exhaustion returns a ConversionError listing every tool that
// actually ran with its individual failure reason.
func (p *Pipeline) convert(ctx context.Context, path string) (string, func(), error) {
	converters := p.cfg.Converters
	if converters == nil {
		converters = defaultConverters()
	}

	// Request-unique output dir: concurrent conversions never collide.
	outDir := filepath.Join(tempRoot(p.cfg.TempDir), "convert-"+uuid.NewString())
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", nil, fmt.Errorf("create temp dir: %w", err)
	}
	cleanup := func() { os.RemoveAll(outDir) }

	var attempts []ConversionAttempt
	for _, conv := range converters {
		if conv.Available != nil && !conv.Available() {
			p.logger.Debug("conversion tool unavailable, skipping", "tool", conv.Name)
			continue
		}

		attemptCtx, cancel := context.WithTimeout(ctx, p.cfg.ConvertTimeout)
		start := time.Now()
		produced, err := conv.Run(attemptCtx, path, outDir)
		timedOut := attemptCtx.Err() == context.DeadlineExceeded
		cancel()

		if err == nil && produced != "" {
			if _, statErr := os.Stat(produced); statErr == nil {
				p.logger.Debug("conversion succeeded",
					"tool", conv.Name, "output", produced, "elapsed", time.Since(start))
				return produced, cleanup, nil
			}
			err = fmt.Errorf("reported success but %s does not exist", produced)
		}

		reason := "no output produced"
		switch {
		case timedOut || errors.Is(err, context.DeadlineExceeded):
			reason = fmt.Sprintf("%v after %s", ErrConversionTimeout, p.cfg.ConvertTimeout)
		case err != nil:
			reason = err.Error()
		}
		p.logger.Debug("conversion attempt failed", "tool", conv.Name, "reason", reason)
		attempts = append(attempts, ConversionAttempt{Tool: conv.Name, Reason: reason})
	}

	cleanup()
	return "", nil, &ConversionError{Attempts: attempts}
}

func tempRoot(configured string) string {
	if configured != "" {
		return configured
	}
	return os.TempDir()
}

// defaultConverters returns the platform chain: native office automation
// first, the headless document suite second.
func defaultConverters() []Converter {
	return []Converter{excelComConverter(), sofficeConverter()}
}

// excelComConverter drives Excel through PowerShell COM automation.
// Windows-only; requires an installed Excel.
func excelComConverter() Converter {
	return Converter{
		Name: "excel-com",
		Available: func() bool {
			if runtime.GOOS != "windows" {
				return false
			}
			_, err := exec.LookPath("powershell")
			return err == nil
		},
		Run: func(ctx context.Context, src, outDir string) (string, error) {
			srcAbs, err := filepath.Abs(src)
			if err != nil {
				return "", err
			}
			out := filepath.Join(outDir, strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))+".xlsx")

			// 51 = xlOpenXMLWorkbook.
			script := fmt.Sprintf(`$ErrorActionPreference = 'Stop'
$excel = New-Object -ComObject Excel.Application
$excel.Visible = $false
$excel.DisplayAlerts = $false
try {
    $wb = $excel.Workbooks.Open('%s', $false, $true)
    $wb.SaveAs('%s', 51)
    $wb.Close($false)
} finally {
    $excel.Quit()
}`, srcAbs, out)

			cmd := exec.CommandContext(ctx, "powershell", "-NoProfile", "-NonInteractive", "-Command", script)
			if output, err := cmd.CombinedOutput(); err != nil {
				return "", fmt.Errorf("powershell: %w: %s", err, firstLine(string(output)))
			}
			return out, nil
		},
	}
}

// sofficeConverter drives LibreOffice headless. The availability probe runs
// a version check so a broken install is treated as absent, not as a
// per-file failure.
func sofficeConverter() Converter {
	return Converter{
		Name: "soffice",
		Available: func() bool {
			if _, err := exec.LookPath("soffice"); err != nil {
				return false
			}
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return exec.CommandContext(ctx, "soffice", "--version").Run() == nil
		},
		Run: func(ctx context.Context, src, outDir string) (string, error) {
			cmd := exec.CommandContext(ctx, "soffice", "--headless", "--convert-to", "xlsx", "--outdir", outDir, src)
			if output, err := cmd.CombinedOutput(); err != nil {
				return "", fmt.Errorf("soffice: %w: %s", err, firstLine(string(output)))
			}
			out := filepath.Join(outDir, strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))+".xlsx")
			if _, err := os.Stat(out); err != nil {
				return "", fmt.Errorf("soffice: expected output %s not found", out)
			}
			return out, nil
		},
	}
}
