package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kirillkom/leave-intake/internal/core/domain"
	"github.com/kirillkom/leave-intake/internal/core/usecase"
)

type submitOptions struct {
	sets   []string
	dryRun bool
}

func newSubmitCommand(build func(stderr io.Writer) (Services, *slog.Logger)) *cobra.Command {
	opts := &submitOptions{}
	cmd := &cobra.Command{
		Use:   "submit FILE",
		Short: "Extract a certificate, apply edits and store the license",
		Long: `submit uploads FILE (PDF or image) for extraction, prints the draft and
its annotations, applies every --set edit and submits the result.
Annotations never block the submission.

Example:
  intake submit licencia.pdf
  intake submit foto.jpg --set emitido_por=COMPIN --set dias_reposo=7
  intake submit licencia.pdf --dry-run`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			edits, err := parseEdits(opts.sets)
			if err != nil {
				return err
			}
			upload, err := readUpload(args[0])
			if err != nil {
				return err
			}
			services, logger := build(cmd.ErrOrStderr())
			return runSubmit(cmd.Context(), cmd.OutOrStdout(), services, logger, upload, edits, opts.dryRun)
		},
	}
	cmd.Flags().StringArrayVar(&opts.sets, "set", nil, "edit a draft field, as key=value (repeatable)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "print the draft and cancel instead of submitting")
	return cmd
}

type fieldEdit struct {
	field domain.Field
	value string
}

func parseEdits(raw []string) ([]fieldEdit, error) {
	edits := make([]fieldEdit, 0, len(raw))
	for _, item := range raw {
		key, value, ok := strings.Cut(item, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --set %q: expected key=value", item)
		}
		field := domain.Field(key)
		if !isKnownField(field) {
			return nil, fmt.Errorf("invalid --set %q: unknown field %q", item, key)
		}
		edits = append(edits, fieldEdit{field: field, value: value})
	}
	return edits, nil
}

func isKnownField(field domain.Field) bool {
	for _, known := range domain.Fields {
		if known == field {
			return true
		}
	}
	return false
}

func readUpload(path string) (domain.RawUpload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.RawUpload{}, fmt.Errorf("read %s: %w", path, err)
	}
	name := filepath.Base(path)
	mimeType := domain.MediaTypeFromFilename(name)
	if mimeType == "" {
		mimeType = domain.NormalizeMediaType(http.DetectContentType(data))
	}
	return domain.RawUpload{Filename: name, MimeType: mimeType, Data: data}, nil
}

type draftView struct {
	Draft       domain.License     `json:"draft"`
	Annotations domain.FieldErrors `json:"annotations"`
}

func runSubmit(
	ctx context.Context,
	out io.Writer,
	services Services,
	logger *slog.Logger,
	upload domain.RawUpload,
	edits []fieldEdit,
	dryRun bool,
) error {
	if ctx == nil {
		ctx = context.Background()
	}
	workflow := usecase.NewWorkflow(services.Extractor, services.Persister, usecase.WorkflowOptions{
		Logger: logger,
	})

	if _, err := workflow.Upload(ctx, upload); err != nil {
		return err
	}
	for _, edit := range edits {
		if err := workflow.Edit(edit.field, edit.value); err != nil {
			return err
		}
	}

	snap := workflow.Snapshot()
	if snap.Draft == nil {
		return errors.New("no draft after extraction")
	}
	annotations := snap.Annotations
	if annotations == nil {
		annotations = domain.FieldErrors{}
	}
	if err := printJSON(out, draftView{Draft: *snap.Draft, Annotations: annotations}); err != nil {
		return err
	}

	if dryRun {
		writeLine(out, "dry run: draft discarded")
		return workflow.Cancel()
	}

	record, _, err := workflow.Submit(ctx)
	if err != nil {
		var persistErr *domain.PersistenceError
		if errors.As(err, &persistErr) {
			return fmt.Errorf("license not saved: %s", persistErr.Message)
		}
		return err
	}
	return printJSON(out, record)
}

func printJSON(out io.Writer, v any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
