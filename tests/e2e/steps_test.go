package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/cucumber/godog"

	"github.com/johnsonhungm/Rad-bull/internal/config"
	"github.com/johnsonhungm/Rad-bull/internal/inference"
	"github.com/johnsonhungm/Rad-bull/internal/ris"
	"github.com/johnsonhungm/Rad-bull/internal/uiauto"
	"github.com/johnsonhungm/Rad-bull/internal/uiauto/uiautotest"
	"github.com/johnsonhungm/Rad-bull/internal/workflow"
)

// testContext holds state for a single scenario: the fake desktop, the
// mocked inference endpoint, and the run outcome.
type testContext struct {
	tmpDir  string
	desktop *uiautotest.Desktop
	input   *uiautotest.Input
	clip    *uiautotest.Clipboard
	examBox *uiautotest.Control
	server  *httptest.Server
	cfg     config.Config
	console bytes.Buffer
	result  workflow.Result
	runErr  error
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}

func InitializeScenario(sc *godog.ScenarioContext) {
	tc := &testContext{}

	sc.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		*tc = testContext{}
		tmpDir, err := os.MkdirTemp("", "radbull-e2e-*")
		if err != nil {
			return ctx, err
		}
		tc.tmpDir = tmpDir
		return ctx, nil
	})

	sc.After(func(ctx context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		if tc.server != nil {
			tc.server.Close()
		}
		if tc.tmpDir != "" {
			os.RemoveAll(tc.tmpDir)
		}
		return ctx, nil
	})

	sc.Step(`^a RIS session showing the search screen$`, tc.aRISSessionShowingTheSearchScreen)
	sc.Step(`^a PACS viewer that serves a test bitmap on copy$`, tc.aPACSViewerServingATestBitmap)
	sc.Step(`^the inference endpoint echoes the prompt and answers "([^"]*)"$`, tc.theEndpointAnswers)
	sc.Step(`^the inference endpoint returns status (\d+)$`, tc.theEndpointReturnsStatus)
	sc.Step(`^I run the workflow for (\d+) reports? on (\d+)/(\d+)/(\d+)$`, tc.iRunTheWorkflow)
	sc.Step(`^the run succeeds$`, tc.theRunSucceeds)
	sc.Step(`^the run fails$`, tc.theRunFails)
	sc.Step(`^the report file contains exactly "([^"]*)"$`, tc.theReportFileContains)
	sc.Step(`^the workflow log records "([^"]*)"$`, tc.theWorkflowLogRecords)
	sc.Step(`^the host received (\d+) page turns$`, tc.theHostReceivedPageTurns)
	sc.Step(`^the findings typed into the editor end with "([^"]*)"$`, tc.theTypedFindingsEndWith)
}

func (tc *testContext) aRISSessionShowingTheSearchScreen() error {
	tc.desktop = &uiautotest.Desktop{}
	tc.input = &uiautotest.Input{}
	main := tc.desktop.Add(&uiautotest.Window{
		TitleText: "放射線資訊管理系統 - 主系統 v3.2",
		Bounds:    uiauto.Rect{Left: 0, Top: 0, Right: 1280, Bottom: 1024},
	})
	combo := "WindowsForms10.COMBOBOX.app.0.2b89eaa"
	main.AddControl(&uiautotest.Control{TextValue: "所有類別", Class: combo})
	main.AddControl(&uiautotest.Control{TextValue: "所有檢查地", Class: combo})
	for i := 0; i < 2; i++ {
		main.AddControl(&uiautotest.Control{
			TextValue: "2024/3/5 上午 12:00:00",
			Class:     "WindowsForms10.SysDateTimePick32.app.0.2b89eaa",
			Bounds:    uiauto.Rect{Left: 200, Top: 100 + 40*i, Right: 360, Bottom: 124 + 40*i},
		})
	}
	main.AddControl(&uiautotest.Control{ID: "cmdSearch", Class: "WindowsForms10.BUTTON.app.0.2b89eaa"})
	main.AddControl(&uiautotest.Control{
		ID:     "DataGridView1",
		Class:  "WindowsForms10.Window.8.app.0.2b89eaa",
		Bounds: uiauto.Rect{Left: 40, Top: 320, Right: 1240, Bottom: 900},
	})
	tc.examBox = main.AddControl(&uiautotest.Control{ID: "EXAM", Class: "WindowsForms10.EDIT.app.0.2b89eaa"})
	return nil
}

func (tc *testContext) aPACSViewerServingATestBitmap() error {
	tc.desktop.Add(&uiautotest.Window{TitleText: "[總院] TEST^PATIENT 00000000 CR Chest PA"})
	bitmap := image.NewGray(image.Rect(0, 0, 64, 48))
	tc.clip = &uiautotest.Clipboard{ReadFunc: func() (image.Image, error) {
		return bitmap, nil
	}}
	return nil
}

func (tc *testContext) theEndpointAnswers(answer string) error {
	tc.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]string{"generated_text": inference.DefaultPrompt + " " + answer}
		json.NewEncoder(w).Encode(resp)
	}))
	return nil
}

func (tc *testContext) theEndpointReturnsStatus(status int) error {
	tc.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "service unavailable", status)
	}))
	return nil
}

func (tc *testContext) iRunTheWorkflow(reports, year, month, day int) error {
	tc.cfg = config.Config{
		Token:     "test-token",
		Endpoint:  tc.server.URL,
		OutputDir: tc.tmpDir,
	}

	handler := slog.NewTextHandler(&tc.console, &slog.HandlerOptions{Level: slog.LevelInfo})
	logger := slog.New(handler)

	driver := uiautotest.NewDriver(tc.desktop, tc.input, tc.clip)
	host := ris.New(driver, ris.FastTables(), logger)
	client := inference.NewClient(tc.server.URL, tc.cfg.Token, logger)
	client.HTTP = tc.server.Client()

	runner := workflow.New(workflow.Options{
		Host:     host,
		Analyzer: client,
		Config:   tc.cfg,
		Log:      logger,
	})
	date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.Local)
	tc.result, tc.runErr = runner.Run(context.Background(), date, reports)
	return nil
}

func (tc *testContext) theRunSucceeds() error {
	if tc.runErr != nil {
		return fmt.Errorf("run failed: %v\nLog:\n%s", tc.runErr, tc.console.String())
	}
	if !tc.result.Succeeded {
		return fmt.Errorf("run not marked succeeded: %+v", tc.result)
	}
	return nil
}

func (tc *testContext) theRunFails() error {
	if tc.runErr == nil {
		return fmt.Errorf("run succeeded unexpectedly: %+v", tc.result)
	}
	return nil
}

func (tc *testContext) theReportFileContains(expected string) error {
	data, err := os.ReadFile(tc.cfg.ReportPath())
	if err != nil {
		return fmt.Errorf("read report file: %w", err)
	}
	if string(data) != expected {
		return fmt.Errorf("report file is %q, want %q", data, expected)
	}
	return nil
}

func (tc *testContext) theWorkflowLogRecords(expected string) error {
	if !strings.Contains(tc.console.String(), expected) {
		return fmt.Errorf("log does not contain %q\nLog:\n%s", expected, tc.console.String())
	}
	return nil
}

func (tc *testContext) theHostReceivedPageTurns(expected int) error {
	turns := 0
	for _, seq := range tc.input.Sent {
		if seq == "{F4}" {
			turns++
		}
	}
	if turns != expected {
		return fmt.Errorf("host received %d page turns, want %d", turns, expected)
	}
	return nil
}

func (tc *testContext) theTypedFindingsEndWith(expected string) error {
	if len(tc.examBox.Typed) == 0 {
		return fmt.Errorf("nothing typed into the findings box")
	}
	last := tc.examBox.Typed[len(tc.examBox.Typed)-1]
	if !strings.HasSuffix(last, expected) {
		return fmt.Errorf("typed sequence %q does not end with %q", last, expected)
	}
	return nil
}
