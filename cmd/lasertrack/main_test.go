package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	app "github.com/okian/lasertrack/internal/app"
	"github.com/okian/lasertrack/internal/config"
	"github.com/okian/lasertrack/internal/domain/model"
	"github.com/okian/lasertrack/internal/loggen"
	"github.com/okian/lasertrack/pkg/logger"
)

func quietLogs(t *testing.T) {
	t.Helper()
	if err := logger.InitWithWriter(io.Discard, false); err != nil {
		t.Fatal(err)
	}
}

func writeLogs(t *testing.T, mode model.Mode, n int) (string, []loggen.Match) {
	t.Helper()
	cfg := loggen.DefaultConfig()
	cfg.Matches = n
	cfg.Roster = 10
	cfg.TeamSize = 3
	cfg.Mode = mode
	gen, err := loggen.NewGenerator(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	matches, err := gen.Generate(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	if _, err := loggen.WriteFiles(dir, matches); err != nil {
		t.Fatal(err)
	}
	return dir, matches
}

func TestMainFunction(t *testing.T) {
	quietLogs(t)

	convey.Convey("Given the main application", t, func() {
		convey.Convey("When configuration comes from the environment", func() {
			t.Setenv("LASERTRACK_ADDR", ":8080")
			t.Setenv("LASERTRACK_QUEUE_SIZE", "1000")
			t.Setenv("LASERTRACK_WORKER_COUNT", "4")

			convey.Convey("Then it is loaded", func() {
				cfg, err := loadConfig(context.Background())
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 1000)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 4)
			})
		})

		convey.Convey("When building the service from defaults", func() {
			svc, err := newService(context.Background(), config.New(context.Background()))

			convey.Convey("Then it starts and stops", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(svc.Start(context.Background()), convey.ShouldBeNil)
				convey.So(svc.GetStats()["started"], convey.ShouldEqual, true)
				convey.So(svc.Stop(context.Background()), convey.ShouldBeNil)
			})
		})

		convey.Convey("When listing commands", func() {
			names := make([]string, 0)
			for _, c := range newApp().Commands {
				names = append(names, c.Name)
			}

			convey.Convey("Then every subcommand is registered", func() {
				convey.So(names, convey.ShouldResemble, []string{"serve", "import", "recompute", "replay", "generate"})
			})
		})
	})
}

func TestImportAndReplay(t *testing.T) {
	quietLogs(t)

	convey.Convey("Given generated elimination logs on disk", t, func() {
		dir, matches := writeLogs(t, model.ModeElimination, 3)

		convey.Convey("When reading the directory", func() {
			items, err := readLogs([]string{dir})

			convey.Convey("Then every file becomes a batch item", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(items, convey.ShouldHaveLength, len(matches))
			})
		})

		convey.Convey("When importing into memory", func() {
			items, err := readLogs([]string{dir})
			convey.So(err, convey.ShouldBeNil)
			svc := app.New(serviceOptions(config.New(context.Background()))...)
			var out bytes.Buffer
			err = runImport(context.Background(), svc, items, app.ImportOptions{Ranked: true}, &out)

			convey.Convey("Then one result line is printed per file", func() {
				convey.So(err, convey.ShouldBeNil)
				lines := strings.Split(strings.TrimSpace(out.String()), "\n")
				convey.So(lines, convey.ShouldHaveLength, len(matches))
				for _, line := range lines {
					var res app.ImportResult
					convey.So(json.Unmarshal([]byte(line), &res), convey.ShouldBeNil)
					convey.So(res.Error, convey.ShouldBeEmpty)
					convey.So(res.MatchID, convey.ShouldNotBeEmpty)
				}
			})
		})

		convey.Convey("When importing into SQLite and replaying through the CLI", func() {
			t.Setenv("LASERTRACK_DB_PATH", filepath.Join(t.TempDir(), "lasertrack.db"))

			var out bytes.Buffer
			cliApp := newApp()
			cliApp.Writer = &out
			err := cliApp.RunContext(context.Background(), []string{"lasertrack", "import", "--mode", "sm5", dir})
			convey.So(err, convey.ShouldBeNil)

			var first app.ImportResult
			line, _, _ := strings.Cut(out.String(), "\n")
			convey.So(json.Unmarshal([]byte(line), &first), convey.ShouldBeNil)
			convey.So(first.MatchID, convey.ShouldNotBeEmpty)

			out.Reset()
			cliApp = newApp()
			cliApp.Writer = &out
			err = cliApp.RunContext(context.Background(), []string{"lasertrack", "replay", first.MatchID})

			convey.Convey("Then the stored match replays", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(out.String(), convey.ShouldContainSubstring, `"match_id": "`+first.MatchID+`"`)
			})

			convey.Convey("And ratings can be recomputed", func() {
				cliApp := newApp()
				cliApp.Writer = io.Discard
				err := cliApp.RunContext(context.Background(), []string{"lasertrack", "recompute"})
				convey.So(err, convey.ShouldBeNil)
			})
		})
	})

	convey.Convey("Given no database path", t, func() {
		t.Setenv("LASERTRACK_DB_PATH", "")
		cliApp := newApp()
		cliApp.Writer = io.Discard
		err := cliApp.RunContext(context.Background(), []string{"lasertrack", "recompute"})

		convey.Convey("Then recompute refuses to run", func() {
			convey.So(errors.Is(err, errNoStore), convey.ShouldBeTrue)
		})
	})
}

func TestUpdateMetrics(t *testing.T) {
	quietLogs(t)
	svc := app.New()
	if err := svc.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = svc.Stop(context.Background()) }()

	updateSystemMetrics()
	updateServiceMetrics(svc)
}
