package ris

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/johnsonhungm/Rad-bull/internal/uiauto"
	"github.com/johnsonhungm/Rad-bull/internal/uiauto/uiautotest"
)

// searchFixture wires a fake desktop that looks like the RIS search
// screen: filter combos, two date pickers, a search button and a results
// grid, plus the confirmation dialog the host raises after a search.
type searchFixture struct {
	desktop   *uiautotest.Desktop
	input     *uiautotest.Input
	main      *uiautotest.Window
	dialog    *uiautotest.Window
	category  *uiautotest.Control
	site      *uiautotest.Control
	physician *uiautotest.Control
	exam      *uiautotest.Control
	pickers   []*uiautotest.Control
	search    *uiautotest.Control
	grid      *uiautotest.Control
}

func acceptOnly(ctrl *uiautotest.Control, allowed ...string) func(string) error {
	return func(option string) error {
		if slices.Contains(allowed, option) {
			ctrl.TextValue = option
			return nil
		}
		return fmt.Errorf("item %q not in list", option)
	}
}

func newSearchFixture() *searchFixture {
	f := &searchFixture{
		desktop: &uiautotest.Desktop{},
		input:   &uiautotest.Input{},
	}
	f.main = f.desktop.Add(&uiautotest.Window{
		TitleText: "放射線資訊管理系統 - 主系統 v3.2",
		Bounds:    uiauto.Rect{Left: 0, Top: 0, Right: 1280, Bottom: 1024},
	})
	combo := "WindowsForms10.COMBOBOX.app.0.2b89eaa"
	f.category = f.main.AddControl(&uiautotest.Control{TextValue: "所有類別", Class: combo})
	f.site = f.main.AddControl(&uiautotest.Control{TextValue: "所有檢查地", Class: combo})
	f.physician = f.main.AddControl(&uiautotest.Control{TextValue: "王大明", Class: combo})
	f.physician.SelectFunc = acceptOnly(f.physician, "所有撰打住院醫師")
	f.exam = f.main.AddControl(&uiautotest.Control{TextValue: "檢查部位", Class: combo})
	f.exam.SelectFunc = func(string) error { return errors.New("item not in list") }
	for i := 0; i < 2; i++ {
		p := f.main.AddControl(&uiautotest.Control{
			TextValue: "2024/3/5 上午 12:00:00",
			Class:     "WindowsForms10.SysDateTimePick32.app.0.2b89eaa",
			Bounds:    uiauto.Rect{Left: 200, Top: 100 + 40*i, Right: 360, Bottom: 124 + 40*i},
		})
		f.pickers = append(f.pickers, p)
	}
	f.search = f.main.AddControl(&uiautotest.Control{ID: "cmdSearch", Class: "WindowsForms10.BUTTON.app.0.2b89eaa"})
	f.grid = f.main.AddControl(&uiautotest.Control{
		ID:     "DataGridView1",
		Class:  "WindowsForms10.Window.8.app.0.2b89eaa",
		Bounds: uiauto.Rect{Left: 40, Top: 320, Right: 1240, Bottom: 900},
	})
	f.dialog = f.desktop.Add(&uiautotest.Window{TitleText: "kReport 提示"})
	return f
}

func (f *searchFixture) controller() *Controller {
	return New(uiautotest.NewDriver(f.desktop, f.input, nil), FastTables(), nil)
}

func TestSearchAndOpen_FillsFiltersAndOpensFirstStudy(t *testing.T) {
	f := newSearchFixture()
	date := time.Date(2024, time.March, 5, 0, 0, 0, 0, time.Local)

	if err := f.controller().SearchAndOpen(context.Background(), date); err != nil {
		t.Fatalf("SearchAndOpen returned error: %v", err)
	}

	if got := f.category.Selections; !slices.Equal(got, []string{"一般攝影"}) {
		t.Errorf("category combo selections = %v, want [一般攝影]", got)
	}
	if got := f.site.Selections; !slices.Equal(got, []string{"台大總院"}) {
		t.Errorf("site combo selections = %v, want [台大總院]", got)
	}
	if !slices.Contains(f.category.Typed, "{TAB}") {
		t.Errorf("category combo never received a confirming TAB, typed %v", f.category.Typed)
	}

	// The stale physician filter rejects the first all-value and accepts
	// the second.
	want := []string{"所有報告醫師", "所有撰打住院醫師"}
	if got := f.physician.Selections; !slices.Equal(got, want) {
		t.Errorf("physician combo selections = %v, want %v", got, want)
	}
	if f.physician.TextValue != "所有撰打住院醫師" {
		t.Errorf("physician combo shows %q after reset", f.physician.TextValue)
	}

	if f.exam.ClickCount != 1 {
		t.Errorf("exam combo clicked %d times, want 1", f.exam.ClickCount)
	}
	if !slices.Contains(f.exam.Typed, "32001CXM") {
		t.Errorf("exam code never typed, combo received %v", f.exam.Typed)
	}
	if !slices.Contains(f.input.Sent, "{DOWN}") || !slices.Contains(f.input.Sent, "{TAB}") {
		t.Errorf("exam autocomplete not confirmed, sent %v", f.input.Sent)
	}

	// One keyboard pass per date picker, year first.
	for _, seq := range []string{"2024", "3", "5", "{RIGHT}", "{ENTER}"} {
		if !slices.Contains(f.input.Sent, seq) {
			t.Errorf("date sequence %q never sent, sent %v", seq, f.input.Sent)
		}
	}
	wantClick := uiauto.Point{X: 230, Y: 112}
	if !slices.Contains(f.input.Clicks, wantClick) {
		t.Errorf("year segment of first picker never clicked at %v, clicks %v", wantClick, f.input.Clicks)
	}

	if f.search.ClickCount != 1 {
		t.Errorf("search button clicked %d times, want 1", f.search.ClickCount)
	}
	if f.dialog.FocusCount == 0 {
		t.Error("confirmation dialog never focused")
	}
	if !slices.Contains(f.input.Sent, "%y") {
		t.Errorf("confirmation dialog never answered, sent %v", f.input.Sent)
	}

	wantRow := uiauto.Point{X: 90, Y: 370}
	if !slices.Contains(f.input.DoubleClicks, wantRow) {
		t.Errorf("first grid row never opened at %v, double clicks %v", wantRow, f.input.DoubleClicks)
	}
}

func TestSearchAndOpen_FallsBackToCoordinatesWithoutSearchButton(t *testing.T) {
	f := newSearchFixture()
	f.search.ID = "renamedInNewBuild"

	err := f.controller().SearchAndOpen(context.Background(), time.Date(2024, time.March, 5, 0, 0, 0, 0, time.Local))
	if err != nil {
		t.Fatalf("SearchAndOpen returned error: %v", err)
	}
	want := uiauto.Point{X: 910, Y: 204}
	if !slices.Contains(f.input.Clicks, want) {
		t.Errorf("fallback position %v never clicked, clicks %v", want, f.input.Clicks)
	}
}

func TestSearchAndOpen_RetriesDatePickerThatKeepsOldDate(t *testing.T) {
	f := newSearchFixture()
	f.pickers[0].TextValue = "2023/12/31 上午 12:00:00"

	err := f.controller().SearchAndOpen(context.Background(), time.Date(2024, time.March, 5, 0, 0, 0, 0, time.Local))
	if err != nil {
		t.Fatalf("SearchAndOpen returned error: %v", err)
	}
	// Three attempts on the stuck picker, one on the good one.
	wantClick := uiauto.Point{X: 230, Y: 112}
	clicks := 0
	for _, p := range f.input.Clicks {
		if p == wantClick {
			clicks++
		}
	}
	if clicks != 3 {
		t.Errorf("stuck picker clicked %d times, want 3", clicks)
	}
}

func TestSearchAndOpen_NoDialogIsNotAnError(t *testing.T) {
	f := newSearchFixture()
	f.desktop.Wins = f.desktop.Wins[:1]

	err := f.controller().SearchAndOpen(context.Background(), time.Date(2024, time.March, 5, 0, 0, 0, 0, time.Local))
	if err != nil {
		t.Fatalf("SearchAndOpen returned error: %v", err)
	}
	if slices.Contains(f.input.Sent, "%y") {
		t.Error("dialog answer sent although no dialog existed")
	}
}

func TestSearchAndOpen_FailsWhenGridNeverAppears(t *testing.T) {
	f := newSearchFixture()
	f.grid.ID = "gone"

	err := f.controller().SearchAndOpen(context.Background(), time.Date(2024, time.March, 5, 0, 0, 0, 0, time.Local))
	if !errors.Is(err, uiauto.ErrControlNotFound) {
		t.Fatalf("SearchAndOpen error = %v, want ErrControlNotFound", err)
	}
}

func TestSearchAndOpen_FailsWithoutMainWindow(t *testing.T) {
	desktop := &uiautotest.Desktop{}
	desktop.Add(&uiautotest.Window{TitleText: "Notepad"})
	c := New(uiautotest.NewDriver(desktop, nil, nil), FastTables(), nil)

	err := c.SearchAndOpen(context.Background(), time.Now())
	if !errors.Is(err, uiauto.ErrWindowNotFound) {
		t.Fatalf("SearchAndOpen error = %v, want ErrWindowNotFound", err)
	}
}

func TestAdvanceViewer_PressesF4(t *testing.T) {
	f := newSearchFixture()
	if err := f.controller().AdvanceViewer(context.Background()); err != nil {
		t.Fatalf("AdvanceViewer returned error: %v", err)
	}
	if !slices.Contains(f.input.Sent, "{F4}") {
		t.Errorf("F4 never sent, sent %v", f.input.Sent)
	}
}
