package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/crimson-sun/attrition/pkg/attrition"
)

type predictOutput struct {
	Success bool `json:"success"`
	attrition.Result
}

func predictCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "predict [file|-]",
		Short: "Score one JSON employee record",
		Long:  "Reads a flat JSON object from the file, or stdin when the file is - or omitted, and prints the prediction.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "-"
			if len(args) == 1 {
				path = args[0]
			}
			rec, err := readRecord(path, cmd.InOrStdin())
			if err != nil {
				return err
			}

			p, err := attrition.New(predictorOptions(cfg)...)
			if err != nil {
				return err
			}
			defer p.Close()

			res, err := p.Predict(cmd.Context(), rec)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), predictOutput{Success: true, Result: res})
		},
	}
	return cmd
}

// readRecord decodes one JSON object from path, or from stdin when path is "-".
func readRecord(path string, stdin io.Reader) (attrition.Record, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	dec := json.NewDecoder(r)
	dec.UseNumber()
	var rec attrition.Record
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	if rec == nil {
		return nil, errors.New("decode record: expected a JSON object")
	}
	return rec, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
