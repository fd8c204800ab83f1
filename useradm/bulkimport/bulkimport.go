// Package bulkimport creates accounts from a comma-separated batch,
// one independent outcome per row.
package bulkimport

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	multierror "github.com/hashicorp/go-multierror"

	"github.com/opsforge/useradm/logger"
	"github.com/opsforge/useradm/useradm/accountmanager"
)

// headerRow is skipped verbatim when it is the first line of the input.
const headerRow = "username,full_name,groups,shell"

// GroupDelimiter separates group names inside the groups column,
// distinct from the CSV column delimiter.
const GroupDelimiter = ";"

// Result aggregates per-row outcomes. Rows are independent: a failed
// row never aborts the job, and a later failure never rolls back an
// earlier success.
type Result struct {
	Total     int
	Succeeded int
	Failed    int
	Errors    *multierror.Error
}

// Creator is the slice of AccountManager the pipeline fans out to.
type Creator interface {
	CreateAccount(ctx context.Context, opts accountmanager.CreateOptions) error
}

type Pipeline struct {
	Accounts      Creator
	DefaultGroups []string
	DefaultShell  string
	CreateHome    bool
	Logger        logger.Logger
}

// RunFile opens the batch file and runs the pipeline over it. An
// unreadable file is the only whole-job failure.
func (p *Pipeline) RunFile(ctx context.Context, path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("opening batch input: %w", err)
	}
	defer f.Close()

	return p.Run(ctx, f)
}

func (p *Pipeline) Run(ctx context.Context, r io.Reader) (Result, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	var res Result
	first := true

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			res.Total++
			res.Failed++
			res.Errors = multierror.Append(res.Errors, fmt.Errorf("row %d: %w", res.Total, err))
			p.Logger.Error("bulk import row unparseable", "row", res.Total, "error", err)
			continue
		}

		if first {
			first = false
			if strings.TrimSpace(strings.Join(record, ",")) == headerRow {
				continue
			}
		}

		res.Total++
		opts, err := p.rowOptions(record)
		if err == nil {
			err = p.Accounts.CreateAccount(ctx, opts)
		}
		if err != nil {
			res.Failed++
			res.Errors = multierror.Append(res.Errors, fmt.Errorf("row %d (%s): %w", res.Total, opts.Username, err))
			p.Logger.Error("bulk import row failed", "row", res.Total, "username", opts.Username, "error", err)
			continue
		}
		res.Succeeded++
	}

	p.Logger.Info("bulk import finished",
		"total", res.Total, "succeeded", res.Succeeded, "failed", res.Failed)
	return res, nil
}

func (p *Pipeline) rowOptions(record []string) (accountmanager.CreateOptions, error) {
	fields := make([]string, 4)
	for i := range record {
		if i >= len(fields) {
			break
		}
		fields[i] = strings.TrimSpace(record[i])
	}

	opts := accountmanager.CreateOptions{
		Username:   fields[0],
		Comment:    fields[1],
		Shell:      fields[3],
		CreateHome: p.CreateHome,
	}

	if len(record) < 2 || fields[0] == "" {
		return opts, fmt.Errorf("malformed row: expected username,full_name,groups,shell")
	}

	if fields[2] != "" {
		opts.Groups = strings.Split(fields[2], GroupDelimiter)
		for i := range opts.Groups {
			opts.Groups[i] = strings.TrimSpace(opts.Groups[i])
		}
	} else {
		opts.Groups = p.DefaultGroups
	}

	if opts.Shell == "" {
		opts.Shell = p.DefaultShell
	}

	return opts, nil
}
