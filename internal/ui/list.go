package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/mtx/internal/library"
)

var _ list.Item = groupItem{}

// groupItem wraps [library.Group] to implement [list.Item].
type groupItem struct {
	group *library.Group
}

func (i groupItem) FilterValue() string { return i.group.Name() }

func (i groupItem) Title() string {
	mark := "[ ]"
	if i.group.Selected() {
		mark = "[x]"
	}
	return fmt.Sprintf("%s %s", mark, i.group.Name())
}

func (i groupItem) Description() string {
	desc := string(i.group.Kind())
	if i.group.Ready() {
		desc = fmt.Sprintf("%s • %d items", desc, i.group.Len())
	}
	if d := i.group.Description(); d != "" {
		desc = fmt.Sprintf("%s • %s", desc, d)
	}
	return desc
}
