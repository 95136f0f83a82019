package ui

import (
	"errors"

	"github.com/manifoldco/promptui"
)

// ErrCancelled is returned when the user interrupts a prompt.
var ErrCancelled = errors.New("cancelled")

// Prompter asks the user for values.
type Prompter interface {
	Text(label, defaultValue string) (string, error)
	Confirm(label string, defaultYes bool) (bool, error)
	Select(label string, items []string) (int, string, error)
}

// TerminalPrompter prompts interactively on the terminal.
type TerminalPrompter struct{}

// Text prompts for free text, pre-filled with defaultValue.
func (TerminalPrompter) Text(label, defaultValue string) (string, error) {
	p := promptui.Prompt{
		Label:     label,
		Default:   defaultValue,
		AllowEdit: true,
	}
	v, err := p.Run()
	return v, translate(err)
}

// Confirm prompts for yes/no.
func (TerminalPrompter) Confirm(label string, defaultYes bool) (bool, error) {
	p := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
	}
	if defaultYes {
		p.Default = "y"
	}
	_, err := p.Run()
	if errors.Is(err, promptui.ErrAbort) {
		return false, nil
	}
	if err != nil {
		return false, translate(err)
	}
	return true, nil
}

// Select prompts for one of items.
func (TerminalPrompter) Select(label string, items []string) (int, string, error) {
	s := promptui.Select{
		Label: label,
		Items: items,
	}
	i, v, err := s.Run()
	return i, v, translate(err)
}

func translate(err error) error {
	if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
		return ErrCancelled
	}
	return err
}

// DefaultPrompter answers every prompt with its default, for
// non-interactive use.
type DefaultPrompter struct{}

func (DefaultPrompter) Text(_, defaultValue string) (string, error) {
	return defaultValue, nil
}

func (DefaultPrompter) Confirm(_ string, defaultYes bool) (bool, error) {
	return defaultYes, nil
}

func (DefaultPrompter) Select(_ string, items []string) (int, string, error) {
	if len(items) == 0 {
		return -1, "", errors.New("no items to select from")
	}
	return 0, items[0], nil
}
