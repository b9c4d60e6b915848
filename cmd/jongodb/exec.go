package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jongodb/jongodb/pkg/bsontype"
	"github.com/jongodb/jongodb/pkg/dispatch"
	"github.com/jongodb/jongodb/pkg/handlers"
	"github.com/jongodb/jongodb/pkg/store/memstore"
)

func execCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "exec",
		Short: "Dispatch a single JSON command document and print the response",
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				raw []byte
				err error
			)
			if file == "" || file == "-" {
				raw, err = io.ReadAll(os.Stdin)
			} else {
				raw, err = os.ReadFile(file)
			}
			if err != nil {
				return err
			}

			in, err := bsontype.FromJSON(raw)
			if err != nil {
				return err
			}

			d := dispatch.New(memstore.New())
			handlers.Register(d)
			out := d.Dispatch(in)

			body, err := bsontype.ToJSON(out)
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(append(body, '\n'))
			return err
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "path to a JSON command document (default: stdin)")
	return cmd
}
