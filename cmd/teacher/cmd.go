package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/term"

	"arise/internal/attendance"
	"arise/internal/config"
	"arise/internal/live"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

// consoleAPI is what the console needs from the service. *client.Client implements it.
type consoleAPI interface {
	live.API
	Courses(ctx context.Context) ([]attendance.Course, error)
	ExportReport(ctx context.Context, sessionID int64, w io.Writer) (string, error)
}

type commandLine struct {
	cfg    config.App
	log    *zap.Logger
	in     io.Reader
	out    io.Writer
	newAPI func(token string) consoleAPI
	now    func() time.Time
	loc    *time.Location // report headers; nil means local
}

func (cli *commandLine) location() *time.Location {
	if cli.loc == nil {
		return time.Local
	}
	return cli.loc
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  live -course ID -duration MINUTES [-type offline|online] [-date YYYY-MM-DDTHH:MM] - run a live session")
	fmt.Fprintln(cli.out, "  live -batch CODE [-duration MINUTES] ... - run a live session for a batch code, default duration from the course")
	fmt.Fprintln(cli.out, "  courses - list batch codes")
	fmt.Fprintln(cli.out, "  report -session ID - print the course report up to a session")
	fmt.Fprintln(cli.out, "  export -session ID [-out FILE] - download the report as xlsx")
}

func (cli *commandLine) run(ctx context.Context, args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	liveCmd := flag.NewFlagSet("live", flag.ContinueOnError)
	liveCourse := liveCmd.Int64("course", 0, "The course to take attendance for.")
	liveBatch := liveCmd.String("batch", "", "Batch code of the course, instead of -course.")
	liveDuration := liveCmd.Int("duration", 0, "Session length in minutes.")
	liveType := liveCmd.String("type", string(attendance.SessionOffline), "Session type: offline or online.")
	liveDate := liveCmd.String("date", "", "Start time, local (default now).")

	reportCmd := flag.NewFlagSet("report", flag.ContinueOnError)
	reportSession := reportCmd.Int64("session", 0, "The session whose course report to print.")

	exportCmd := flag.NewFlagSet("export", flag.ContinueOnError)
	exportSession := exportCmd.Int64("session", 0, "The session whose course report to export.")
	exportOut := exportCmd.String("out", "", "Output file (default: the name suggested by the service).")

	for _, fs := range []*flag.FlagSet{liveCmd, reportCmd, exportCmd} {
		fs.SetOutput(cli.out)
	}

	switch args[1] {
	case "live":
		if err := liveCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		batch := strings.TrimSpace(*liveBatch)
		if batch != "" && *liveCourse != 0 {
			liveCmd.Usage()
			return errHelp
		}
		if batch == "" && (*liveCourse <= 0 || *liveDuration <= 0) {
			liveCmd.Usage()
			return errHelp
		}
		start, err := parseStart(*liveDate, cli.now())
		if err != nil {
			return err
		}
		req := attendance.StartRequest{
			CourseID:        *liveCourse,
			StartTime:       start,
			DurationMinutes: *liveDuration,
			Type:            attendance.SessionType(strings.ToLower(*liveType)),
		}
		api, err := cli.api()
		if err != nil {
			return err
		}
		if batch != "" {
			course, err := findBatch(ctx, api, batch)
			if err != nil {
				return err
			}
			req.CourseID = course.ID
			if req.DurationMinutes <= 0 {
				req.DurationMinutes = course.DefaultDurationMinutes
			}
		}
		if err := req.Validate(); err != nil {
			return err
		}
		return cli.live(ctx, api, req)
	case "courses":
		api, err := cli.api()
		if err != nil {
			return err
		}
		courses, err := api.Courses(ctx)
		if err != nil {
			return err
		}
		renderCourses(cli.out, courses)
		return nil
	case "report":
		if err := reportCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *reportSession <= 0 {
			reportCmd.Usage()
			return errHelp
		}
		api, err := cli.api()
		if err != nil {
			return err
		}
		m, course, err := live.New(api, live.Options{Logger: cli.log}).ReportFor(ctx, *reportSession)
		if err != nil {
			return err
		}
		renderReport(cli.out, course, m, cli.location())
		return nil
	case "export":
		if err := exportCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *exportSession <= 0 {
			exportCmd.Usage()
			return errHelp
		}
		api, err := cli.api()
		if err != nil {
			return err
		}
		return cli.export(ctx, api, *exportSession, *exportOut)
	default:
		cli.printUsage()
		return errHelp
	}
}

// findBatch resolves a batch code to its course, ignoring case.
func findBatch(ctx context.Context, api consoleAPI, batch string) (attendance.Course, error) {
	courses, err := api.Courses(ctx)
	if err != nil {
		return attendance.Course{}, err
	}
	for _, c := range courses {
		if strings.EqualFold(c.Batchcode, batch) {
			return c, nil
		}
	}
	return attendance.Course{}, &attendance.ValidationError{Field: "batch", Message: fmt.Sprintf("no course with batch code %q", batch)}
}

func (cli *commandLine) api() (consoleAPI, error) {
	token := cli.cfg.APIToken
	if token == "" {
		fmt.Fprint(cli.out, "API token:")
		b, err := readPasswordFunc(int(os.Stdin.Fd()))
		fmt.Fprintln(cli.out)
		if err != nil {
			return nil, err
		}
		token = strings.TrimSpace(string(b))
		if token == "" {
			return nil, &attendance.ValidationError{Field: "token", Message: "an API token is required"}
		}
	}
	return cli.newAPI(token), nil
}

func (cli *commandLine) export(ctx context.Context, api consoleAPI, sessionID int64, out string) error {
	var buf bytes.Buffer
	name, err := api.ExportReport(ctx, sessionID, &buf)
	if err != nil {
		return err
	}
	if out == "" {
		out = name
	}
	if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	fmt.Fprintf(cli.out, "Saved %s (%d bytes)\n", out, buf.Len())
	return nil
}

func (cli *commandLine) serveMetrics() {
	if cli.cfg.MetricsAddr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(cli.cfg.MetricsAddr, mux); err != nil {
			cli.log.Warn("metrics listener stopped", zap.Error(err))
		}
	}()
}

func (cli *commandLine) live(ctx context.Context, api consoleAPI, req attendance.StartRequest) error {
	ctrl := live.New(api, live.Options{PollInterval: cli.cfg.PollInterval, Logger: cli.log})
	defer ctrl.Close()

	v, err := ctrl.Start(ctx, req)
	if err != nil {
		return err
	}
	cli.serveMetrics()
	renderView(cli.out, v)
	fmt.Fprintln(cli.out, commandHelp)

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(cli.in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	last := v
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(cli.out, "interrupted, the session is still open on the service")
			return nil
		case v := <-ctrl.Updates():
			if changed(last, v) {
				renderView(cli.out, v)
				last = v
			}
		case line, ok := <-lines:
			if !ok {
				fmt.Fprintln(cli.out, "input closed, the session is still open on the service")
				return nil
			}
			done, err := cli.exec(ctx, ctrl, line)
			if err != nil {
				fmt.Fprintf(cli.out, "error: %s\n", errMessage(err))
			}
			if done {
				return nil
			}
			last = ctrl.View()
		}
	}
}

// changed reports whether an update is worth printing unprompted.
func changed(a, b live.View) bool {
	return a.SessionID != b.SessionID || a.State != b.State || a.MarkedCount != b.MarkedCount ||
		a.Device.Status != b.Device.Status || a.LastError != b.LastError
}

// exec runs one typed command. done is true when the live view should exit.
func (cli *commandLine) exec(ctx context.Context, ctrl *live.Controller, line string) (done bool, err error) {
	cmd, err := parseCommand(line)
	if err != nil {
		return false, err
	}
	switch cmd.name {
	case "":
	case "help":
		fmt.Fprintln(cli.out, commandHelp)
	case "find":
		renderView(cli.out, ctrl.SetFilter(cmd.term()))
	case "mark":
		if err := ctrl.MarkManually(ctx, cmd.args[0], cmd.reason()); err != nil {
			return false, err
		}
		fmt.Fprintf(cli.out, "Marked %s present.\n", cmd.args[0])
		renderView(cli.out, ctrl.View())
	case "extend":
		if err := ctrl.Extend(ctx); err != nil {
			return false, err
		}
		renderView(cli.out, ctrl.View())
	case "refresh":
		if err := ctrl.Refresh(ctx); err != nil {
			return false, err
		}
		renderView(cli.out, ctrl.View())
	case "report":
		return false, cli.printReport(ctx, ctrl)
	case "end":
		if err := ctrl.End(ctx); err != nil {
			return false, err
		}
		fmt.Fprintln(cli.out, "Session ended.")
		return true, cli.printReport(ctx, ctrl)
	case "quit":
		return true, nil
	}
	return false, nil
}

func (cli *commandLine) printReport(ctx context.Context, ctrl *live.Controller) error {
	m, course, err := ctrl.ReportFor(ctx, ctrl.View().SessionID)
	if err != nil {
		return err
	}
	renderReport(cli.out, course, m, cli.location())
	return nil
}

func errMessage(err error) string {
	var ve *attendance.ValidationError
	switch {
	case attendance.IsUnauthorized(err):
		return "the service rejected the token; set API_TOKEN to a valid teacher token"
	case errors.As(err, &ve):
		return ve.Message
	case attendance.IsNetwork(err):
		return "cannot reach the attendance service: " + err.Error()
	}
	return err.Error()
}
