// cmd/formschema exports the UI schema of every edit form as JSON, one file
// per form, and checks that exported schemas still match the definitions.
//
//	formschema export --out gen/forms
//	formschema check --out gen/forms
//
// Both commands accept --defs to compile a directory of CUE definitions
// instead of the ones built into the binary.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"

	"github.com/agrodata/agroadmin/internal/formdef"
)

var (
	outDir  string
	defsDir string
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("formschema: ")

	root := &cobra.Command{
		Use:           "formschema",
		Short:         "Export and verify edit form UI schemas",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&outDir, "out", "gen/forms", "schema output directory")
	root.PersistentFlags().StringVar(&defsDir, "defs", "", "directory of .cue form definitions (default: built-in)")

	root.AddCommand(
		&cobra.Command{
			Use:   "export",
			Short: "Write one JSON schema per form",
			RunE:  func(cmd *cobra.Command, args []string) error { return export() },
		},
		&cobra.Command{
			Use:   "check",
			Short: "Fail when exported schemas differ from the definitions",
			RunE:  func(cmd *cobra.Command, args []string) error { return check() },
		},
	)

	if err := root.Execute(); err != nil {
		log.Fatal(err)
	}
}

func loadRegistry() (*formdef.Registry, error) {
	if defsDir == "" {
		return formdef.Load()
	}
	return formdef.LoadFS(os.DirFS(defsDir), ".")
}

// render returns the file contents for every form keyed by file name.
func render() (map[string][]byte, error) {
	reg, err := loadRegistry()
	if err != nil {
		return nil, err
	}
	files := make(map[string][]byte)
	for _, s := range reg.UISchemas() {
		data, err := json.MarshalIndent(s, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encoding %s: %w", s.Form, err)
		}
		files[s.Form+".json"] = append(data, '\n')
	}
	return files, nil
}

func export() error {
	files, err := render()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	for _, name := range sortedKeys(files) {
		path := filepath.Join(outDir, name)
		if err := os.WriteFile(path, files[name], 0o644); err != nil {
			return err
		}
		fmt.Printf("  wrote %s\n", path)
	}
	fmt.Printf("%d form schemas exported\n", len(files))
	return nil
}

func check() error {
	files, err := render()
	if err != nil {
		return err
	}
	stale := 0
	for _, name := range sortedKeys(files) {
		path := filepath.Join(outDir, name)
		current, err := os.ReadFile(path)
		if err != nil {
			fmt.Printf("  missing %s\n", path)
			stale++
			continue
		}
		if bytes.Equal(current, files[name]) {
			continue
		}
		var got, want any
		_ = json.Unmarshal(current, &got)
		_ = json.Unmarshal(files[name], &want)
		fmt.Printf("  stale %s (-exported +definitions):\n%s", path, cmp.Diff(got, want))
		stale++
	}
	if stale > 0 {
		return fmt.Errorf("%d schema(s) out of date; run 'formschema export'", stale)
	}
	fmt.Println("form schemas are up to date")
	return nil
}

func sortedKeys(m map[string][]byte) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
