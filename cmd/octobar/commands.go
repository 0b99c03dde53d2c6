package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nhle/octobar/internal/app"
	"github.com/nhle/octobar/internal/model"
)

func runTUI(ctx context.Context, rt *runtime) error {
	m := app.New(rt.engine, rt.store, app.WithAlertFeed(rt.feed))
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func runDaemon(ctx context.Context, rt *runtime, metricsAddr string) error {
	if !rt.engine.Authenticated() {
		return errors.New("not signed in, run octobar login first")
	}

	var srv *http.Server
	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(rt.registry, promhttp.HandlerOpts{}))
		srv = &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			rt.log.Info().Str("addr", metricsAddr).Msg("serving metrics")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				rt.log.Error().Err(err).Msg("metrics server")
			}
		}()
	}

	if err := rt.engine.Start(ctx); err != nil {
		return err
	}
	if _, err := rt.engine.PollNow(ctx); err != nil {
		rt.log.Warn().Err(err).Msg("initial poll")
	}

	<-ctx.Done()
	rt.engine.Stop()

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
	return nil
}

func runLogin(ctx context.Context, rt *runtime, in io.Reader) error {
	var token string
	if isTerminal(in) {
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Personal Access Token").
					Description("Needs the notifications scope").
					EchoMode(huh.EchoModePassword).
					Value(&token),
			),
		)
		if err := form.RunWithContext(ctx); err != nil {
			return err
		}
	} else {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("reading token: %w", err)
		}
		token = line
	}

	login, err := rt.engine.SignIn(ctx, token)
	if err != nil {
		return err
	}
	fmt.Printf("Signed in as %s\n", login)
	return nil
}

// runInit writes cfg to path unless a file is already there.
func runInit(path string, cfg *model.AppConfig, w io.Writer) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	if err := model.SaveConfig(path, cfg); err != nil {
		return err
	}
	fmt.Fprintf(w, "Wrote %s\n", path)
	return nil
}

func runList(ctx context.Context, rt *runtime, w io.Writer) error {
	records, err := rt.store.FetchAll(ctx)
	if err != nil {
		return err
	}
	printRecords(w, records)
	return nil
}

func runPoll(ctx context.Context, rt *runtime, w io.Writer) error {
	n, err := rt.engine.Poll(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%d new, %d unread\n", n, rt.engine.UnreadCount())
	return nil
}

func printRecords(w io.Writer, records []model.NotificationRecord) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tUNREAD\tREPO\tREASON\tTITLE\tUPDATED")
	for _, r := range records {
		unread := ""
		if r.Unread {
			unread = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, unread, r.ContainerName, r.Reason.Label(), r.SubjectTitle,
			r.UpdatedAt.Local().Format("2006-01-02 15:04"))
	}
	tw.Flush()
}
