package main

import (
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/trainloop/capture/pkg/capture"
	"github.com/trainloop/capture/pkg/cli"
)

var registryFlags struct {
	tag string
}

var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "List call sites from the registry",
	Long: `List every source location that made a captured call, with its latest
tag, call count and first/last seen timestamps.

Examples:
  # All call sites
  trainloop registry

  # Call sites whose latest tag is "summarize", as CSV
  trainloop registry --tag summarize -o csv`,
	RunE: showRegistry,
}

func init() {
	registryCmd.Flags().StringVar(&registryFlags.tag, "tag", "", "only show call sites with this tag")
	rootCmd.AddCommand(registryCmd)
}

func showRegistry(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return cli.NewCommandError("registry", err)
	}
	defer st.Close()

	reg, err := st.ReadRegistry(cmd.Context())
	if err != nil {
		return cli.NewCommandError("registry", err)
	}
	if registryFlags.tag != "" {
		reg = filterRegistry(reg, registryFlags.tag)
	}
	return render(cmd.OutOrStdout(), reg, registryTable(reg))
}

func filterRegistry(reg *capture.Registry, tag string) *capture.Registry {
	out := capture.NewRegistry()
	for file, lines := range reg.Files {
		for line, entry := range lines {
			if entry.Tag != tag {
				continue
			}
			if out.Files[file] == nil {
				out.Files[file] = make(map[string]capture.RegistryEntry)
			}
			out.Files[file][line] = entry
		}
	}
	return out
}

// registryTable lists call sites by file, then numerically by line.
func registryTable(reg *capture.Registry) *cli.Table {
	t := &cli.Table{Columns: []string{"FILE", "LINE", "TAG", "COUNT", "FIRST SEEN", "LAST SEEN"}}

	files := make([]string, 0, len(reg.Files))
	for file := range reg.Files {
		files = append(files, file)
	}
	sort.Strings(files)

	for _, file := range files {
		lines := make([]string, 0, len(reg.Files[file]))
		for line := range reg.Files[file] {
			lines = append(lines, line)
		}
		sort.Slice(lines, func(i, j int) bool { return lineLess(lines[i], lines[j]) })

		for _, line := range lines {
			e := reg.Files[file][line]
			t.Data = append(t.Data, []string{file, line, e.Tag, strconv.Itoa(e.Count), e.FirstSeen, e.LastSeen})
		}
	}
	return t
}

func lineLess(a, b string) bool {
	ai, aerr := strconv.Atoi(a)
	bi, berr := strconv.Atoi(b)
	if aerr == nil && berr == nil {
		return ai < bi
	}
	return a < b
}
