package main

import (
	"fmt"
	"io"
)

func runCompletion(args []string, out, errOut io.Writer) int {
	if len(args) != 1 {
		fmt.Fprintln(errOut, "usage: duet completion [bash|zsh]")
		return 1
	}
	switch args[0] {
	case "bash":
		_, _ = io.WriteString(out, bashCompletionScript)
		return 0
	case "zsh":
		_, _ = io.WriteString(out, zshCompletionScript)
		return 0
	default:
		fmt.Fprintln(errOut, "usage: duet completion [bash|zsh]")
		return 1
	}
}

const duetFlagWords = "--config --session --model --host --scenario --transport --max-turns --turn-timeout --min-interval --serve --watch --keep-session --force --headless --run-dir --width --no-color --verbose --help --version"

const bashCompletionScript = `# Bash completion for duet
_duet_complete() {
  local cur prev words cword
  _init_completion || return

  if [[ "$cword" -eq 1 ]]; then
    COMPREPLY=( $(compgen -W "run validate init completion version ` + duetFlagWords + `" -- "$cur") )
    return
  fi

  case "$prev" in
    completion)
      COMPREPLY=( $(compgen -W "bash zsh" -- "$cur") )
      return
      ;;
    --config|--run-dir)
      _filedir
      return
      ;;
    --transport)
      COMPREPLY=( $(compgen -W "pane pty api" -- "$cur") )
      return
      ;;
  esac

  if [[ "${words[1]}" == "validate" || "${words[1]}" == "init" ]]; then
    _filedir
    return
  fi

  if [[ "$cur" == -* ]]; then
    COMPREPLY=( $(compgen -W "` + duetFlagWords + `" -- "$cur") )
    return
  fi
}

complete -F _duet_complete duet
`

const zshCompletionScript = `#compdef duet

_duet() {
  local -a commands options
  commands=(
    'run:Relay a conversation (default)'
    'validate:Check a persona file'
    'init:Write a starter persona file'
    'completion:Print a shell completion script'
    'version:Print version and exit'
  )
  options=(
    '--config[Persona file]:FILE:_files'
    '--session[tmux session name]:NAME'
    '--model[Default model]:NAME'
    '--host[Ollama host URL]:URL'
    '--scenario[Roleplay scenario]:TEXT'
    '--transport[Agent transport]:KIND:(pane pty api)'
    '--max-turns[Stop after N messages]:N'
    '--turn-timeout[Per-reply budget]:DURATION'
    '--min-interval[Delay between relayed messages]:DURATION'
    '--serve[Live view address]:ADDR'
    '--watch[Reload personas on change]'
    '--keep-session[Leave the tmux session running]'
    '--force[Replace an existing session]'
    '--headless[Skip the tmux feed panes]'
    '--run-dir[Run artifact directory]:DIR:_files -/'
    '--width[Wrap column]:N'
    '--no-color[Disable ANSI colors]'
    '--verbose[Show relay internals]'
    '--help[Show help]'
    '--version[Print version]'
  )

  if (( CURRENT == 2 )); then
    _describe 'command' commands
  fi
  _arguments $options
}

_duet "$@"
`
