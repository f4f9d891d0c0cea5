package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"autopilot/internal/command"
	"autopilot/internal/format"
	"autopilot/internal/model"
	"autopilot/internal/project"
	"autopilot/internal/selection"
	"autopilot/internal/tree"
	"autopilot/internal/viewport"

	"github.com/spf13/cobra"
)

func newReplCmd(app *App) *cobra.Command {
	var create bool
	cmd := &cobra.Command{
		Use:   "repl <script>",
		Short: "Edit a script interactively",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := project.Open(ctx, args[0], project.Options{Config: app.cfg, Log: app.log, Create: create})
			if err != nil {
				return writeErr(cmd, err)
			}
			r := &repl{ctx: ctx, s: s, app: app, in: bufio.NewReader(cmd.InOrStdin()), out: cmd.OutOrStdout()}
			r.run()
			if err := s.Close(ctx); err != nil {
				return writeErr(cmd, err)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&create, "create", false, "Create the script when it does not exist")
	return cmd
}

type repl struct {
	ctx context.Context
	s   *project.Session
	app *App
	in  *bufio.Reader
	out io.Writer
}

// controller is what the flow and the editor have in common.
type controller interface {
	Delete() *command.Delete
	Cut() *command.Cut
	Copy() *command.Copy
	Paste() *command.Paste
	MoveUp() *command.Move
	MoveDown() *command.Move
}

var errUsage = errors.New("usage")

func (r *repl) run() {
	fmt.Fprintln(r.out, "autopilot REPL - type 'help' for commands, 'quit' to exit")
	for {
		fmt.Fprintf(r.out, "autopilot:%s> ", r.s.Active())
		line, err := r.in.ReadString('\n')
		line = strings.TrimSpace(line)
		if line != "" {
			more, herr := r.handle(line)
			if herr != nil {
				fmt.Fprintf(r.out, "error: %v\n", herr)
			}
			if !more {
				return
			}
		}
		if err != nil {
			fmt.Fprintln(r.out)
			return
		}
	}
}

func (r *repl) handle(line string) (bool, error) {
	parts := strings.Fields(line)
	verb, args := strings.ToLower(parts[0]), parts[1:]

	switch verb {
	case "help", "?":
		r.printHelp()
	case "quit", "exit":
		return false, nil
	case "tree":
		r.printTree()
	case "focus":
		if len(args) != 1 {
			return true, fmt.Errorf("%w: focus <flow|editor>", errUsage)
		}
		return true, r.s.Activate(args[0])
	case "select":
		return true, r.selectItems(args)
	case "add", "extend":
		if len(args) != 1 {
			return true, fmt.Errorf("%w: %s <id>", errUsage, verb)
		}
		r.withSelection(func(sel *selection.Selection) {
			if verb == "add" {
				sel.AddToSelection(args[0])
			} else {
				sel.ExpandSelectionTo(args[0])
			}
		})
	case "head":
		if len(args) != 1 {
			return true, fmt.Errorf("%w: head <list path>", errUsage)
		}
		return true, r.selectHead(args[0])
	case "state":
		return true, format.Write(r.out, r.s.CurrentState(), r.app.Format, true)
	case "new-context":
		return true, r.exec(func() command.Command { return r.s.Flow().CreateContext() })
	case "new-action":
		if len(args) != 1 {
			return true, fmt.Errorf("%w: new-action <type>", errUsage)
		}
		return true, r.exec(func() command.Command { return r.s.Flow().CreateAction(args[0]) })
	case "new-pipe":
		if len(args) != 1 {
			return true, fmt.Errorf("%w: new-pipe <type>", errUsage)
		}
		return true, r.exec(func() command.Command { return r.s.Editor().CreatePipe(args[0]) })
	case "delete":
		ctl := r.controller()
		return true, r.exec(func() command.Command { return ctl.Delete() })
	case "cut":
		ctl := r.controller()
		return true, r.exec(func() command.Command { return ctl.Cut() })
	case "copy":
		ctl := r.controller()
		return true, r.exec(func() command.Command { return ctl.Copy() })
	case "paste":
		ctl := r.controller()
		return true, r.exec(func() command.Command { return ctl.Paste() })
	case "type":
		return true, r.changeType(args)
	case "set":
		return true, r.set(args)
	case "move":
		if len(args) != 1 || (args[0] != "up" && args[0] != "down") {
			return true, fmt.Errorf("%w: move <up|down>", errUsage)
		}
		ctl := r.controller()
		return true, r.exec(func() command.Command {
			if args[0] == "up" {
				return ctl.MoveUp()
			}
			return ctl.MoveDown()
		})
	case "undo":
		out, err := r.s.Undo()
		if err == nil {
			fmt.Fprintln(r.out, out)
		}
		return true, err
	case "redo":
		out, err := r.s.Redo()
		if err == nil {
			fmt.Fprintln(r.out, out)
		}
		return true, err
	case "save":
		if err := r.s.Save(r.ctx); err != nil {
			return true, err
		}
		fmt.Fprintln(r.out, "saved", r.s.Path())
	case "reload":
		changed, err := r.s.Reload(r.ctx)
		if err == nil && !changed {
			fmt.Fprintln(r.out, "unchanged")
		}
		return true, err
	case "stats":
		return true, r.printStats()
	default:
		return true, fmt.Errorf("unknown command %q (try 'help')", verb)
	}
	return true, nil
}

func (r *repl) printHelp() {
	fmt.Fprint(r.out, `Viewports:
  focus <flow|editor>         make a viewport active
  state                       show both viewports' selection
Selection (active viewport):
  select <id> [id...]         select items of one list
  select <list path> <i...>   select by index, e.g. select /contexts 0 2
  add <id>                    add an item to the selection
  extend <id>                 range-select up to an item
  head <list path>            target the head of a list
Editing:
  new-context                 insert a context
  new-action <type>           insert an action
  new-pipe <type>             insert a pipe into the open action
  delete | cut | copy | paste
  type <type> [key=value...]  change the type of the selected action or pipe
  set <key> <value>           set label or a param of the selected item
  move <up|down>
History:
  undo | redo
Other:
  tree | save | reload | stats | help | quit
`)
}

// exec builds and runs a command, printing whether anything happened.
// build runs with the session lock held and must not call Session methods.
func (r *repl) exec(build func() command.Command) error {
	ok, err := r.s.Run(build)
	if err != nil {
		return err
	}
	if ok {
		fmt.Fprintln(r.out, "ok")
	} else {
		fmt.Fprintln(r.out, "nothing to do")
	}
	return nil
}

func (r *repl) controller() controller {
	if r.s.Active() == viewport.EditorID {
		return r.s.Editor()
	}
	return r.s.Flow()
}

func (r *repl) withSelection(fn func(sel *selection.Selection)) {
	id := r.s.Active()
	vp, _ := r.s.Viewport(id)
	r.s.Locked(func(*tree.Document) { fn(vp.Selection()) })
}

func (r *repl) selectItems(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: select <id> [id...] | select <list path> <i...>", errUsage)
	}
	if !strings.HasPrefix(args[0], "/") {
		var missing string
		r.withSelection(func(sel *selection.Selection) {
			sel.SelectIDs(args)
			if sel.IsEmpty() {
				missing = args[0]
			}
		})
		if missing != "" {
			return fmt.Errorf("no item %q", missing)
		}
		return nil
	}

	ref, err := tree.ParseListRef(args[0])
	if err != nil {
		return err
	}
	if len(args) < 2 {
		return fmt.Errorf("%w: select <list path> <i...>", errUsage)
	}
	indices := make([]int, 0, len(args)-1)
	for _, a := range args[1:] {
		i, err := strconv.Atoi(a)
		if err != nil || i < 0 {
			return fmt.Errorf("invalid index %q", a)
		}
		indices = append(indices, i)
	}
	var selErr error
	id := r.s.Active()
	vp, _ := r.s.Viewport(id)
	r.s.Locked(func(doc *tree.Document) {
		l, err := doc.ResolveList(ref)
		if err != nil {
			selErr = err
			return
		}
		for _, i := range indices {
			if i >= l.Len() {
				selErr = fmt.Errorf("index %d out of range (list has %d items)", i, l.Len())
				return
			}
		}
		vp.Selection().SetState(selection.State{Path: ref.String(), Indices: indices})
	})
	return selErr
}

func (r *repl) selectHead(path string) error {
	ref, err := tree.ParseListRef(path)
	if err != nil {
		return err
	}
	var selErr error
	id := r.s.Active()
	vp, _ := r.s.Viewport(id)
	r.s.Locked(func(doc *tree.Document) {
		if _, err := doc.ResolveList(ref); err != nil {
			selErr = err
			return
		}
		vp.Selection().SelectListHead(ref)
	})
	return selErr
}

func (r *repl) changeType(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: type <type> [key=value...]", errUsage)
	}
	fields := map[string]any{}
	for _, kv := range args[1:] {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return fmt.Errorf("invalid field %q (want key=value)", kv)
		}
		fields[k] = parseValue(v)
	}
	editor := r.s.Active() == viewport.EditorID
	return r.exec(func() command.Command {
		if editor {
			return r.s.Editor().ChangePipeType(args[0], fields)
		}
		return r.s.Flow().ChangeActionType(args[0], fields)
	})
}

func (r *repl) set(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("%w: set <key> <value>", errUsage)
	}
	key, value := args[0], parseValue(strings.Join(args[1:], " "))
	if key == "label" {
		value = fmt.Sprint(value)
	}
	editor := r.s.Active() == viewport.EditorID
	return r.exec(func() command.Command {
		switch {
		case editor:
			return r.s.Editor().EditParam(key, value)
		case key == "label":
			return r.s.Flow().EditLabel(value.(string))
		default:
			return r.s.Flow().SetParam(key, value)
		}
	})
}

// parseValue reads JSON scalars and literals, falling back to the raw text.
func parseValue(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err == nil {
		return v
	}
	return s
}

func (r *repl) printTree() {
	script := r.s.Script()
	marks := map[string]string{}
	for _, id := range []string{viewport.FlowID, viewport.EditorID} {
		vp, _ := r.s.Viewport(id)
		r.s.Locked(func(*tree.Document) {
			for _, sid := range vp.Selection().SelectedIDs() {
				marks[sid] += id[:1]
			}
		})
	}
	fmt.Fprintf(r.out, "script %s\n", script.ID)
	root := tree.RootPath.List(model.ListContexts)
	r.printList(root, script.Contexts, marks, 1)
}

func (r *repl) printList(ref tree.ListRef, items []model.Spec, marks map[string]string, depth int) {
	indent := strings.Repeat("  ", depth)
	fmt.Fprintf(r.out, "%s%s\n", indent, ref)
	for i, it := range items {
		line := fmt.Sprintf("%s  [%d] %s %s", indent, i, it.Type, it.ID)
		if it.Label != "" {
			line += fmt.Sprintf(" %q", it.Label)
		}
		if len(it.Params) > 0 {
			keys := make([]string, 0, len(it.Params))
			for k := range it.Params {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			var ps []string
			for _, k := range keys {
				ps = append(ps, fmt.Sprintf("%s=%v", k, it.Params[k]))
			}
			line += " {" + strings.Join(ps, " ") + "}"
		}
		if m := marks[it.ID]; m != "" {
			line += " <" + m
		}
		fmt.Fprintln(r.out, line)
		for _, key := range []model.ListKey{model.ListMatchers, model.ListChildren, model.ListDefinitions, model.ListPipeline} {
			if sub := it.List(key); len(sub) > 0 {
				r.printList(ref.Item(i).List(key), sub, marks, depth+2)
			}
		}
	}
}

func (r *repl) printStats() error {
	samples, err := r.s.Metrics().Gather()
	if err != nil {
		return err
	}
	for _, sm := range samples {
		var labels []string
		for k, v := range sm.Labels {
			labels = append(labels, k+"="+v)
		}
		sort.Strings(labels)
		fmt.Fprintf(r.out, "%s{%s} %g\n", sm.Name, strings.Join(labels, ","), sm.Value)
	}
	return nil
}
