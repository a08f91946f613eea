package tui

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/rs/zerolog"

	"github.com/joe/scpi/internal/browser"
	"github.com/joe/scpi/internal/transfer"
	"github.com/joe/scpi/internal/tui/shared"
	scperrors "github.com/joe/scpi/pkg/errors"
	"github.com/joe/scpi/pkg/filesystem"
)

const pumpTimeout = 5 * time.Second

// pump runs cmd and every command it leads to, feeding messages back into the model the
// way a tea.Program would. Timer-driven redraws are dropped so the loop ends.
func pump(model *AppModel, cmd tea.Cmd) (quit bool) {
	msgs := make(chan tea.Msg, 64)
	outstanding := 0

	launch := func(c tea.Cmd) {
		if c == nil {
			return
		}

		outstanding++

		go func() {
			msgs <- c()
		}()
	}

	launch(cmd)

	deadline := time.After(pumpTimeout)

	for outstanding > 0 {
		select {
		case msg := <-msgs:
			outstanding--

			switch msg := msg.(type) {
			case nil, spinner.TickMsg, shared.TickMsg:
			case tea.BatchMsg:
				for _, c := range msg {
					launch(c)
				}
			case tea.QuitMsg:
				quit = true
			default:
				_, next := model.Update(msg)
				launch(next)
			}
		case <-deadline:
			Fail("pump timed out")

			return quit
		}
	}

	return quit
}

func press(model *AppModel, keys ...string) tea.Cmd {
	var last tea.Cmd

	for _, k := range keys {
		var msg tea.KeyMsg

		switch k {
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		case "ctrl+c":
			msg = tea.KeyMsg{Type: tea.KeyCtrlC}
		case "space":
			msg = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
		case "backspace":
			msg = tea.KeyMsg{Type: tea.KeyBackspace}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}

		_, last = model.Update(msg)
	}

	return last
}

func newSourceTree() *filesystem.MockFileSystem {
	fs := filesystem.NewMockFileSystem()
	fs.AddFile("/data/top.txt", []byte("top"), 0o644)
	fs.AddFile("/data/logs/app.log", []byte("log line"), 0o644)
	fs.AddFile("/data/logs/old/archive.log", []byte("archived"), 0o600)
	fs.AddDir("/out")

	return fs
}

func session(fs filesystem.FileSystem, state *browser.State, source, target string) Session {
	return Session{
		Endpoints: filesystem.Endpoints{
			Source: filesystem.Endpoint{Kind: filesystem.Local, Path: source},
			Target: filesystem.Endpoint{Kind: filesystem.Remote, Path: target, Host: "h", User: "u", Port: 22},
		},
		SourceFS: fs,
		TargetFS: fs,
		Browser:  state,
		Logger:   zerolog.Nop(),
	}
}

var _ = Describe("AppModel", func() {
	var (
		fs    *filesystem.MockFileSystem
		state *browser.State
		model *AppModel
	)

	Describe("browsing sources", func() {
		BeforeEach(func() {
			fs = newSourceTree()

			var err error

			state, err = browser.New(fs, browser.SideSource, "/data", browser.SelectSources)
			Expect(err).NotTo(HaveOccurred())

			model = NewAppModel(context.Background(), session(fs, state, "/data", "/out"))
			model.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
		})

		It("starts in the browse phase without running anything", func() {
			Expect(model.Phase()).To(Equal(PhaseBrowse))
			Expect(model.Init()).To(BeNil())

			view := ansi.Strip(model.View())
			Expect(view).To(ContainSubstring("logs/"))
			Expect(view).To(ContainSubstring("top.txt"))
			Expect(view).To(ContainSubstring("Selected: 0 files, 0 directories"))
		})

		It("refuses to commit an empty selection", func() {
			press(model, "c")

			Expect(model.Phase()).To(Equal(PhaseBrowse))
			Expect(ansi.Strip(model.View())).To(ContainSubstring("Select at least one entry"))
		})

		It("navigates into directories and back", func() {
			Expect(ansi.Strip(model.View())).NotTo(ContainSubstring("bksp back"))

			press(model, "enter")
			Expect(state.Cwd()).To(Equal("/data/logs"))
			Expect(ansi.Strip(model.View())).To(ContainSubstring("←/bksp back"))

			press(model, "backspace")
			Expect(state.Cwd()).To(Equal("/data"))
		})

		It("reports entering a file as a notice", func() {
			press(model, "j", "enter")

			Expect(state.Cwd()).To(Equal("/data"))
			Expect(ansi.Strip(model.View())).To(ContainSubstring("not a directory"))
		})

		It("searches as the pattern is typed", func() {
			press(model, "/", "t", "o", "p")
			Expect(model.searching).To(BeTrue())

			entry, ok := state.CursorEntry()
			Expect(ok).To(BeTrue())
			Expect(entry.Name()).To(Equal("top.txt"))

			press(model, "enter")
			Expect(model.searching).To(BeFalse())
			Expect(ansi.Strip(model.View())).To(ContainSubstring(`search "top": 1/1`))
		})

		It("selects every match of the last search", func() {
			press(model, "m")
			Expect(state.Selected()).To(BeEmpty())
			Expect(ansi.Strip(model.View())).To(ContainSubstring("Search with / first"))

			press(model, "/", "l", "o", "g", "enter", "m")
			Expect(state.Selected()).To(Equal([]string{"logs"}))
			Expect(ansi.Strip(model.View())).To(ContainSubstring("Selected: 0 files, 1 directory"))
		})

		It("copies a selected nested file preserving its directories", func() {
			press(model, "enter", "enter", "space")
			Expect(state.Selected()).To(Equal([]string{"logs/old/archive.log"}))

			cmd := press(model, "c")
			Expect(model.Phase()).To(Equal(PhasePlan))
			Expect(ansi.Strip(model.View())).To(ContainSubstring("Planning transfer"))

			pump(model, cmd)

			result, ok := model.Result()
			Expect(ok).To(BeTrue())
			Expect(result.Outcome).To(Equal(transfer.OutcomeSucceeded))
			Expect(result.FilesCopied).To(Equal(1))
			Expect(model.Phase()).To(Equal(PhaseDone))

			data, err := fs.GetFile("/out/logs/old/archive.log")
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(Equal("archived"))
			Expect(fs.Exists("/out/top.txt")).To(BeFalse())

			view := ansi.Strip(model.View())
			Expect(view).To(ContainSubstring("Copied 1 file"))
			Expect(view).To(ContainSubstring("Press any key to exit"))

			Expect(press(model, "x")).NotTo(BeNil())
		})

		It("quits without copying when cancelled", func() {
			press(model, "space")
			cmd := press(model, "esc")

			Expect(model.Aborted()).To(BeTrue())
			Expect(state.Phase()).To(Equal(browser.Cancelled))
			Expect(cmd()).To(Equal(tea.QuitMsg{}))

			_, ok := model.Result()
			Expect(ok).To(BeFalse())
			Expect(fs.Exists("/out/logs")).To(BeFalse())
		})

		It("treats ctrl+c during a search as leaving the app", func() {
			press(model, "/", "ctrl+c")

			Expect(model.Aborted()).To(BeTrue())
		})
	})

	Describe("choosing a destination", func() {
		BeforeEach(func() {
			fs = newSourceTree()
			fs.AddDir("/out/inbox")

			var err error

			state, err = browser.New(fs, browser.SideTarget, "/out", browser.SelectDestination)
			Expect(err).NotTo(HaveOccurred())

			model = NewAppModel(context.Background(), session(fs, state, "/data/top.txt", "/out"))
		})

		It("ignores selection keys and copies into the highlighted directory", func() {
			press(model, "space")
			Expect(state.Selected()).To(BeEmpty())

			pump(model, press(model, "c"))

			result, ok := model.Result()
			Expect(ok).To(BeTrue())
			Expect(result.Err).NotTo(HaveOccurred())
			Expect(fs.Exists("/out/inbox/top.txt")).To(BeTrue())
		})
	})

	Describe("starting without a browser", func() {
		It("plans and copies on Init", func() {
			fs = newSourceTree()
			model = NewAppModel(context.Background(), session(fs, nil, "/data/top.txt", "/out"))

			Expect(model.Phase()).To(Equal(PhasePlan))
			Expect(ansi.Strip(model.View())).NotTo(ContainSubstring("Browse"))

			pump(model, model.Init())

			result, ok := model.Result()
			Expect(ok).To(BeTrue())
			Expect(result.FilesCopied).To(Equal(1))
			Expect(fs.Exists("/out/top.txt")).To(BeTrue())
		})

		It("shows a planning failure with suggestions", func() {
			fs = newSourceTree()
			model = NewAppModel(context.Background(), session(fs, nil, "/data", "/out"))

			pump(model, model.Init())

			Expect(model.Err()).To(MatchError(scperrors.ErrNotADirectoryRequiresRecursive))
			Expect(model.Phase()).To(Equal(PhaseDone))
			Expect(ansi.Strip(model.View())).To(ContainSubstring("Transfer could not start"))
		})

		It("reports the failing task and keeps earlier work", func() {
			fs = newSourceTree()
			fs.InjectError(filesystem.OpCreate, "/out/data/top.txt", os.ErrPermission)

			sess := session(fs, nil, "/data", "/out")
			sess.Recursive = true
			model = NewAppModel(context.Background(), sess)

			pump(model, model.Init())

			result, ok := model.Result()
			Expect(ok).To(BeTrue())
			Expect(result.Outcome).To(Equal(transfer.OutcomeFailed))
			Expect(result.Failed).NotTo(BeNil())
			Expect(result.Failed.Source).To(Equal("/data/top.txt"))
			Expect(result.Err).To(MatchError(scperrors.ErrPermissionDenied))

			view := ansi.Strip(model.View())
			Expect(view).To(ContainSubstring("Transfer failed"))
			Expect(view).To(ContainSubstring("/data/top.txt"))
		})

		It("records a cancelled outcome when the context is already done", func() {
			fs = newSourceTree()

			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			model = NewAppModel(ctx, session(fs, nil, "/data/top.txt", "/out"))
			pump(model, model.Init())

			result, ok := model.Result()
			Expect(ok).To(BeTrue())
			Expect(result.Outcome).To(Equal(transfer.OutcomeCancelled))
			Expect(fs.Exists("/out/top.txt")).To(BeFalse())
		})
	})

	Describe("transfer events", func() {
		BeforeEach(func() {
			fs = newSourceTree()
			model = NewAppModel(context.Background(), session(fs, nil, "/data", "/out"))
			model.phase = PhaseCopy
		})

		It("tracks progress and lists finished files", func() {
			task := transfer.CopyTask{
				Entry:       filesystem.Entry{RelativePath: "top.txt", Kind: filesystem.KindFile, Size: 3},
				Source:      "/data/top.txt",
				Destination: "/out/top.txt",
				Size:        3,
			}

			model.Update(shared.TransferEventMsg{Event: transfer.TaskProgress{Progress: transfer.Progress{
				CurrentPath: "/data/top.txt", BytesSentCurrentFile: 3, BytesTotalCurrentFile: 3,
				FilesDone: 1, FilesTotal: 2, BytesDoneTotal: 3, BytesTotalOverall: 6,
			}}})
			model.Update(shared.TransferEventMsg{Event: transfer.TaskCompleted{Task: task, Duration: time.Second}})

			view := ansi.Strip(model.View())
			Expect(view).To(ContainSubstring("1/2 files"))
			Expect(view).To(ContainSubstring("/out/top.txt"))
			Expect(view).To(ContainSubstring("esc to cancel"))
		})

		It("shows the time spent since the first progress report", func() {
			clock := transfer.NewManualClock(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
			sess := session(fs, nil, "/data", "/out")
			sess.TimeProvider = clock
			model = NewAppModel(context.Background(), sess)
			model.phase = PhaseCopy

			report := func(done uint64) {
				model.Update(shared.TransferEventMsg{Event: transfer.TaskProgress{Progress: transfer.Progress{
					CurrentPath: "/data/logs/app.log", BytesSentCurrentFile: done, BytesTotalCurrentFile: 8,
					FilesTotal: 1, BytesDoneTotal: done, BytesTotalOverall: 8,
				}}})
			}

			report(0)
			clock.Advance(2 * time.Second)
			report(4)

			Expect(ansi.Strip(model.View())).To(ContainSubstring("elapsed 2s"))
		})

		It("cancels the run on esc and quits afterwards on ctrl+c", func() {
			cancelled := false
			model.cancel = func() { cancelled = true }

			press(model, "esc")
			Expect(cancelled).To(BeTrue())
			Expect(ansi.Strip(model.View())).To(ContainSubstring("Cancelling"))

			press(model, "ctrl+c")
			Expect(model.quitWhenDone).To(BeTrue())

			_, cmd := model.Update(shared.TransferDoneMsg{Result: transfer.Result{Outcome: transfer.OutcomeCancelled}})
			Expect(cmd).NotTo(BeNil())
			Expect(cmd()).To(Equal(tea.QuitMsg{}))
		})
	})
})

func TestAppModel(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "AppModel Suite")
}
