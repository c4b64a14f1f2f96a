//go:build fyne && cgo

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package ui

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	fstorage "fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"movingcard/internal/canvas"
	"movingcard/internal/crash"
	"movingcard/internal/domain"
	"movingcard/internal/export"
	applog "movingcard/internal/log"
	"movingcard/internal/version"
	"movingcard/internal/wizard"
)

// Run starts the desktop layout editor. layoutPath optionally names a layout
// document to open immediately.
func Run(layoutPath string, exp export.Options) error {
	l := applog.WithComponent("ui")
	l.Info("starting UI", slog.String("layout", layoutPath))
	defer crash.Recover(crash.Info{Command: "ui"})

	wz, err := OpenSession(layoutPath, wizard.Deps{})
	if err != nil {
		return err
	}
	defer wz.Close()

	fyneApp := app.NewWithID("movingcard")
	w := fyneApp.NewWindow("MovingCard " + version.String())
	prefs := fyneApp.Preferences()
	winW := max(prefs.IntWithFallback("window.width", 900), 640)
	winH := max(prefs.IntWithFallback("window.height", 760), 480)
	w.Resize(fyne.NewSize(float32(winW), float32(winH)))

	status := widget.NewLabel("Ready")
	view := NewLayoutView(wz, exp)

	greeting := widget.NewMultiLineEntry()
	greeting.Wrapping = fyne.TextWrapWord
	greeting.SetMinRowsVisible(6)

	paperNames := make([]string, 0, len(domain.Papers()))
	paperByName := map[string]domain.PaperKind{}
	for _, p := range domain.Papers() {
		paperNames = append(paperNames, p.Name)
		paperByName[p.Name] = p.Kind
	}
	paperSel := widget.NewSelect(paperNames, nil)
	fontSize := widget.NewEntry()
	fontSize.Validator = func(s string) error {
		n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil || n < 6 || n > 96 {
			return fmt.Errorf("font size must be between 6 and 96")
		}
		return nil
	}

	// syncing suppresses widget callbacks while syncWidgets writes into them.
	syncing := false
	syncWidgets := func() {
		syncing = true
		defer func() { syncing = false }()
		v := wz.Snapshot()
		if greeting.Text != v.Content.GreetingText {
			greeting.SetText(v.Content.GreetingText)
		}
		for _, p := range v.Papers {
			if p.Kind == v.Paper {
				paperSel.SetSelected(p.Name)
			}
		}
		if v.Layout != nil {
			for _, el := range v.Layout.Elements {
				if el.ID == domain.TextElementID {
					fontSize.SetText(strconv.FormatFloat(el.TextStyleOrDefault().FontSizePx, 'f', -1, 64))
				}
			}
		}
		view.Refresh()
	}
	edit := func(fn func(e *canvas.Engine) error) {
		if syncing {
			return
		}
		if err := wz.Canvas(func(e *canvas.Engine, _ *canvas.StaticContainer) error { return fn(e) }); err != nil {
			dialog.ShowError(err, w)
		}
		syncWidgets()
	}
	selectEl := func(id string) {
		edit(func(e *canvas.Engine) error {
			if id == "" {
				e.ClearSelection()
			} else {
				e.SelectElement(id)
			}
			return nil
		})
	}

	view.OnChange = syncWidgets
	greeting.OnChanged = func(s string) {
		if syncing {
			return
		}
		wz.SetGreeting(s)
		view.Refresh()
	}
	paperSel.OnChanged = func(name string) {
		edit(func(e *canvas.Engine) error { return e.SetPaperProfile(paperByName[name]) })
	}
	fontSize.OnSubmitted = func(s string) {
		if fontSize.Validate() != nil {
			return
		}
		n, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
		edit(func(e *canvas.Engine) error {
			el, ok := e.Element(domain.TextElementID)
			if !ok {
				return nil
			}
			st := el.TextStyleOrDefault()
			st.FontSizePx = n
			e.SetTextStyle(domain.TextElementID, st)
			return nil
		})
	}
	deselectBtn := widget.NewButtonWithIcon("", theme.ContentClearIcon(), func() { selectEl("") })

	var refreshRecent func()
	openPath := func(path string) {
		if err := LoadLayoutFile(wz, path); err != nil {
			l.Error("open layout failed", slog.String("path", path), slog.Any("err", err))
			dialog.ShowError(err, w)
			return
		}
		addRecentLayout(prefs, path)
		refreshRecent()
		status.SetText("Opened " + filepath.Base(path))
		syncWidgets()
	}
	saveTo := func(uc fyne.URIWriteCloser, write func(fyne.URIWriteCloser) error, what string) {
		path := uc.URI().Path()
		err := write(uc)
		if cerr := uc.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			l.Error(what+" failed", slog.String("path", path), slog.Any("err", err))
			dialog.ShowError(err, w)
			return
		}
		status.SetText("Wrote " + path)
	}

	openItem := fyne.NewMenuItem("Open Layout…", func() {
		open := dialog.NewFileOpen(func(ur fyne.URIReadCloser, err error) {
			if err != nil {
				dialog.ShowError(err, w)
				return
			}
			if ur == nil {
				return
			}
			path := ur.URI().Path()
			_ = ur.Close()
			openPath(path)
		}, w)
		open.SetFilter(fstorage.NewExtensionFileFilter([]string{".json"}))
		open.Show()
	})
	openRecentItem := fyne.NewMenuItem("Open Recent", nil)
	refreshRecent = func() {
		var items []*fyne.MenuItem
		for _, p := range loadRecentLayouts(prefs) {
			items = append(items, fyne.NewMenuItem(p, func() { openPath(p) }))
		}
		if len(items) == 0 {
			none := fyne.NewMenuItem("(none)", nil)
			none.Disabled = true
			items = append(items, none)
		}
		openRecentItem.ChildMenu = fyne.NewMenu("", items...)
		if mm := w.MainMenu(); mm != nil {
			mm.Refresh()
		}
	}
	refreshRecent()
	saveItem := fyne.NewMenuItem("Save Layout As…", func() {
		save := dialog.NewFileSave(func(uc fyne.URIWriteCloser, err error) {
			if err != nil {
				dialog.ShowError(err, w)
				return
			}
			if uc == nil {
				return
			}
			saveTo(uc, func(uc fyne.URIWriteCloser) error { return WriteLayout(wz, uc) }, "save layout")
			addRecentLayout(prefs, uc.URI().Path())
			refreshRecent()
		}, w)
		save.SetFileName("layout.json")
		save.SetFilter(fstorage.NewExtensionFileFilter([]string{".json"}))
		save.Show()
	})

	exportItem := func(f export.Format) *fyne.MenuItem {
		return fyne.NewMenuItem("Export "+strings.ToUpper(string(f))+"…", func() {
			save := dialog.NewFileSave(func(uc fyne.URIWriteCloser, err error) {
				if err != nil {
					dialog.ShowError(err, w)
					return
				}
				if uc == nil {
					return
				}
				saveTo(uc, func(uc fyne.URIWriteCloser) error { return WriteExport(wz, uc, f, exp) }, "export")
			}, w)
			save.SetFileName(fmt.Sprintf("movingcard-%s.%s", wz.Snapshot().Paper, f))
			save.SetFilter(fstorage.NewExtensionFileFilter([]string{"." + string(f)}))
			save.Show()
		})
	}

	selectText := fyne.NewMenuItem("Select Greeting", func() { selectEl(domain.TextElementID) })
	selectImage := fyne.NewMenuItem("Select Image", func() { selectEl(domain.ImageElementID) })
	clearSel := fyne.NewMenuItem("Clear Selection", func() { selectEl("") })
	aboutItem := fyne.NewMenuItem("About MovingCard", func() {
		dialog.ShowInformation("About", "MovingCard "+version.String(), w)
	})
	w.SetMainMenu(fyne.NewMainMenu(
		fyne.NewMenu("File", openItem, openRecentItem, saveItem),
		fyne.NewMenu("Edit", selectText, selectImage, clearSel),
		fyne.NewMenu("Export", exportItem(export.FormatPDF), exportItem(export.FormatPNG), exportItem(export.FormatSVG)),
		fyne.NewMenu("Help", aboutItem),
	))
	w.Canvas().SetOnTypedKey(func(ev *fyne.KeyEvent) {
		if ev.Name == fyne.KeyEscape {
			selectEl("")
		}
	})

	toolbar := container.NewHBox(deselectBtn, widget.NewLabel("Paper"), paperSel, widget.NewLabel("Font px"), fontSize)
	side := container.NewBorder(widget.NewLabel("Greeting"), nil, nil, nil, greeting)
	split := container.NewHSplit(view, side)
	split.Offset = 0.7
	w.SetContent(container.NewBorder(toolbar, status, nil, nil, split))

	// Persist preferences on close
	w.SetCloseIntercept(func() {
		sz := w.Canvas().Size()
		prefs.SetInt("window.width", int(sz.Width))
		prefs.SetInt("window.height", int(sz.Height))
		w.Close()
	})

	if layoutPath != "" {
		addRecentLayout(prefs, layoutPath)
		refreshRecent()
	}
	syncWidgets()
	w.ShowAndRun()
	return nil
}
