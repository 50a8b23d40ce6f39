package version

// Values are injected at build time via -ldflags.
var (
	Version   = "dev"
	GitCommit = ""
	Built     = ""
)

type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit,omitempty"`
	Built     string `json:"built,omitempty"`
}

func Get() Info {
	return Info{Version: Version, GitCommit: GitCommit, Built: Built}
}

// Line renders the one-line form printed by the version subcommands.
func (i Info) Line(binary string) string {
	line := binary + " " + i.Version
	if i.GitCommit != "" {
		line += " (" + shortCommit(i.GitCommit) + ")"
	}
	if i.Built != "" {
		line += " built " + i.Built
	}
	return line
}

func shortCommit(commit string) string {
	if len(commit) > 12 {
		return commit[:12]
	}
	return commit
}
