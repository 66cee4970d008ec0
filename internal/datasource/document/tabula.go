package document

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"retaildc/internal/etlerr"
)

// BytesGetter is satisfied by *httpds.Client.
type BytesGetter interface {
	GetBytes(ctx context.Context, url string) ([]byte, error)
}

// Tabula runs the tabula-java command line tool over a document. Remote
// documents (http/https) are downloaded to a temporary file first; other
// URIs are treated as local paths.
type Tabula struct {
	// Command is the argv prefix, e.g. ["java", "-jar", "tabula.jar"] or
	// ["tabula"].
	Command []string
	HTTP    BytesGetter

	// run executes the command and returns stdout; tests replace it.
	run func(ctx context.Context, argv []string) ([]byte, error)
}

// NewTabula returns a Tabula invoking command.
func NewTabula(command []string, http BytesGetter) *Tabula {
	if len(command) == 0 {
		command = []string{"tabula"}
	}
	return &Tabula{Command: command, HTTP: http, run: runCommand}
}

// Fragments implements FragmentExtractor.
func (t *Tabula) Fragments(ctx context.Context, uri string) ([]Fragment, error) {
	op := "document: " + uri
	path, cleanup, err := t.localCopy(ctx, uri)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	argv := append(append([]string(nil), t.Command...), "--format", "JSON", "--pages", "all", "--lattice", path)
	out, err := t.run(ctx, argv)
	if err != nil {
		return nil, etlerr.Format(op, err)
	}
	frags, err := decodeTabula(out)
	if err != nil {
		return nil, etlerr.Format(op, err)
	}
	return frags, nil
}

func (t *Tabula) localCopy(ctx context.Context, uri string) (string, func(), error) {
	noop := func() {}
	if !strings.HasPrefix(uri, "http://") && !strings.HasPrefix(uri, "https://") {
		p := strings.TrimPrefix(uri, "file://")
		if _, err := os.Stat(p); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return "", noop, etlerr.NotFound("document: open "+p, err)
			}
			return "", noop, fmt.Errorf("document: stat %s: %w", p, err)
		}
		return p, noop, nil
	}
	if t.HTTP == nil {
		return "", noop, fmt.Errorf("document: no http client for %s", uri)
	}
	body, err := t.HTTP.GetBytes(ctx, uri)
	if err != nil {
		return "", noop, err
	}
	f, err := os.CreateTemp("", "retaildc-*"+filepath.Ext(uri))
	if err != nil {
		return "", noop, fmt.Errorf("document: temp file: %w", err)
	}
	cleanup := func() { _ = os.Remove(f.Name()) }
	if _, err := f.Write(body); err != nil {
		f.Close()
		cleanup()
		return "", noop, fmt.Errorf("document: write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", noop, fmt.Errorf("document: write temp file: %w", err)
	}
	return f.Name(), cleanup, nil
}

func runCommand(ctx context.Context, argv []string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", argv[0], err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// tabulaTable mirrors tabula-java's JSON output for one table.
type tabulaTable struct {
	Page int `json:"page_number"`
	Data [][]struct {
		Text string `json:"text"`
	} `json:"data"`
}

func decodeTabula(b []byte) ([]Fragment, error) {
	var tables []tabulaTable
	if err := json.Unmarshal(b, &tables); err != nil {
		return nil, fmt.Errorf("decode tabula output: %w", err)
	}
	frags := make([]Fragment, 0, len(tables))
	for _, tb := range tables {
		f := Fragment{Page: tb.Page, Rows: make([][]string, 0, len(tb.Data))}
		for _, row := range tb.Data {
			cells := make([]string, len(row))
			for i, c := range row {
				cells[i] = c.Text
			}
			f.Rows = append(f.Rows, cells)
		}
		frags = append(frags, f)
	}
	return frags, nil
}
