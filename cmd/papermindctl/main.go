// papermindctl - консольный клиент backend PaperMind.
// Использует те же сервисы, что и UI: кэш запросов, проверку PDF и выбор документа.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/docopt/docopt-go"
	"golang.org/x/sync/errgroup"

	"github.com/anismabaziz/paper-mind/internal/backendclient"
	"github.com/anismabaziz/paper-mind/internal/config"
	"github.com/anismabaziz/paper-mind/internal/domain/model"
	"github.com/anismabaziz/paper-mind/internal/pdfcheck"
	"github.com/anismabaziz/paper-mind/internal/query"
	"github.com/anismabaziz/paper-mind/internal/selection"
	"github.com/anismabaziz/paper-mind/internal/service"
)

const defaultBackendURL = "http://localhost:3000"

// Ограничение на одновременные загрузки.
const uploadParallelism = 4

var Out *log.Logger
var Err *log.Logger

func init() {
	Out = log.New(os.Stdout, "", 0)
	Err = log.New(os.Stderr, "", log.Ldate|log.Ltime)
}

// cli - общее состояние одной команды.
type cli struct {
	library *service.LibraryService
	sel     *selection.Store
}

func main() {
	usage := `PaperMind control.

The default backend url is http://localhost:3000 (or $PM_BACKEND_URL).

Usage:
    papermindctl files [--backend_url=<url>]
    papermindctl upload [--backend_url=<url>] [--max_bytes=<n>] <path>...
    papermindctl delete [--backend_url=<url>] <id>
    papermindctl process [--backend_url=<url>] <id>
    papermindctl status [--backend_url=<url>] <id>

Options:
    -h --help              Show this screen.
    --version              Show version.
    --backend_url=<url>    Backend base url.
    --max_bytes=<n>        Reject files larger than n bytes [default: 33554432].`

	opts, err := docopt.ParseArgs(usage, os.Args[1:], config.Version)
	if err != nil {
		panic(err)
	}

	c, err := newCLI(opts)
	if err != nil {
		Err.Fatalf("%v", err)
	}

	ctx := context.Background()

	if files_, _ := opts.Bool("files"); files_ {
		err = c.files(ctx)
	} else if upload_, _ := opts.Bool("upload"); upload_ {
		paths, _ := opts["<path>"].([]string)
		err = c.upload(ctx, paths)
	} else if delete_, _ := opts.Bool("delete"); delete_ {
		id, _ := opts.String("<id>")
		err = c.remove(ctx, id)
	} else if process_, _ := opts.Bool("process"); process_ {
		id, _ := opts.String("<id>")
		err = c.process(ctx, id)
	} else if status_, _ := opts.Bool("status"); status_ {
		id, _ := opts.String("<id>")
		err = c.status(ctx, id)
	}

	if err != nil {
		Err.Fatalf("%v", err)
	}
}

func newCLI(opts docopt.Opts) (*cli, error) {
	backendURL, _ := opts.String("--backend_url")
	if backendURL == "" {
		backendURL = os.Getenv("PM_BACKEND_URL")
	}
	if backendURL == "" {
		backendURL = defaultBackendURL
	}

	maxBytes := int64(0)
	if n, err := opts.Int("--max_bytes"); err == nil {
		maxBytes = int64(n)
	}

	return newCLIWithURL(backendURL, maxBytes)
}

func newCLIWithURL(backendURL string, maxBytes int64) (*cli, error) {
	// Логи сервисов не смешиваются с выводом команд
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	backend, err := backendclient.New(backendURL, "", 60*time.Second, false, logger)
	if err != nil {
		return nil, err
	}

	return &cli{
		library: service.NewLibraryService(
			backend,
			query.NewClient(64, time.Minute),
			pdfcheck.NewValidator(maxBytes),
			logger,
		),
		sel: selection.NewStore(),
	}, nil
}

// files печатает документы с размером и статусом обработки.
// Первый документ отмечается как выбранный, как в UI.
func (c *cli) files(ctx context.Context) error {
	r := c.library.Documents(ctx, c.sel)
	if r.Err != nil {
		return r.Err
	}
	if len(r.Data) == 0 {
		Out.Printf("no documents")
		return nil
	}

	processed := make([]string, len(r.Data))
	var wg sync.WaitGroup
	for i, doc := range r.Data {
		wg.Go(func() {
			st := c.library.IsProcessed(ctx, doc)
			switch {
			case st.Err != nil:
				processed[i] = "unknown"
			case st.Data:
				processed[i] = "processed"
			default:
				processed[i] = "pending"
			}
		})
	}
	wg.Wait()

	selectedID := c.sel.Get().ID()
	for i, doc := range r.Data {
		mark := " "
		if doc.ID == selectedID {
			mark = "*"
		}
		Out.Printf("%s %s\t%s\t%s\t%s", mark, doc.ID, doc.Name, doc.SizeLabel(), processed[i])
	}
	return nil
}

// upload загружает файлы параллельно. Ошибка одного файла не отменяет остальные.
func (c *cli) upload(ctx context.Context, paths []string) error {
	var g errgroup.Group
	g.SetLimit(uploadParallelism)

	failed := make([]error, len(paths))
	for i, path := range paths {
		g.Go(func() error {
			data, err := os.ReadFile(path)
			if err != nil {
				failed[i] = err
				return nil
			}
			res, err := c.library.Upload(ctx, model.Upload{
				Filename: filepath.Base(path),
				Data:     data,
			})
			if err != nil {
				failed[i] = fmt.Errorf("%s: %w", path, err)
				return nil
			}
			Out.Printf("uploaded %s as %s", path, res.StoredName())
			return nil
		})
	}
	_ = g.Wait()

	count := 0
	for _, err := range failed {
		if err != nil {
			Err.Printf("%v", err)
			count++
		}
	}
	if count > 0 {
		return fmt.Errorf("%d of %d uploads failed", count, len(paths))
	}
	return nil
}

func (c *cli) remove(ctx context.Context, id string) error {
	doc, err := c.library.Delete(ctx, id)
	if err != nil {
		return err
	}
	Out.Printf("deleted %s (%s)", doc.ID, doc.Name)
	return nil
}

func (c *cli) process(ctx context.Context, id string) error {
	doc, err := c.library.Find(ctx, id)
	if err != nil {
		return err
	}
	msg, err := c.library.Process(ctx, doc)
	if err != nil {
		return err
	}
	Out.Printf("%s: %s", doc.Name, msg)
	return nil
}

func (c *cli) status(ctx context.Context, id string) error {
	doc, err := c.library.Find(ctx, id)
	if err != nil {
		return err
	}
	st := c.library.IsProcessed(ctx, doc)
	if st.Err != nil {
		return st.Err
	}
	Out.Printf("%s\tprocessed=%t", doc.Name, st.Data)
	return nil
}
