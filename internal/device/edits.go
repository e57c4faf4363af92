package device

import (
	"context"
	"fmt"
	"slices"

	"github.com/roach88/rmlearn/internal/slots"
	"github.com/roach88/rmlearn/internal/store"
)

// SlotEdit is an operator change of one slot value.
type SlotEdit struct {
	Key string
	Old string
	New string
}

// ApplySlotEdits brings the command store in line with edited slot values.
// The slot list is the source of truth: a changed value renames the
// command, an emptied value deletes it.
//
// The whole batch is validated before anything changes. An edit is refused
// when the new name is already taken (NAME_COLLISION), when it names an
// empty slot (NO_SOURCE_COMMAND), when its key is not a slot
// (UNKNOWN_SLOT) or when the old name is not a stored command (NOT_FOUND).
//
// Edits are committed to the store one at a time. If one fails to persist,
// the edits before it stay committed and the rest are not attempted.
// ApplySlotEdits does not write the slot list; EditSlots does.
func (c *Controller) ApplySlotEdits(ctx context.Context, edits []SlotEdit) error {
	_, err := c.applySlotEdits(ctx, edits)
	return err
}

// applySlotEdits returns the edits committed to the store, in order, even
// when it fails part way.
func (c *Controller) applySlotEdits(ctx context.Context, edits []SlotEdit) ([]SlotEdit, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	normalized := make([]SlotEdit, 0, len(edits))
	claimed := map[string]bool{}
	for _, e := range edits {
		e.Old = store.NormalizeName(e.Old)
		e.New = store.NormalizeName(e.New)
		if err := c.validateEdit(e, claimed); err != nil {
			return nil, err
		}
		normalized = append(normalized, e)
	}

	applied := make([]SlotEdit, 0, len(normalized))
	for _, e := range normalized {
		switch {
		case e.Old == e.New:
		case e.New == "":
			if err := c.store.Delete(ctx, e.Old); err != nil {
				return applied, fmt.Errorf("slot %s: %w", e.Key, err)
			}
			c.logger.Info("command deleted from slot", "slot", e.Key, "name", e.Old)
		default:
			if err := c.store.Rename(ctx, e.Old, e.New); err != nil {
				return applied, fmt.Errorf("slot %s: %w", e.Key, err)
			}
			c.logger.Info("command renamed from slot", "slot", e.Key, "from", e.Old, "to", e.New)
		}
		applied = append(applied, e)
	}
	return applied, nil
}

func (c *Controller) validateEdit(e SlotEdit, claimed map[string]bool) error {
	if !c.slots.Owns(e.Key) {
		return &Error{Code: ErrCodeUnknownSlot, Key: e.Key, Message: "not a slot of this device"}
	}
	if e.Old == e.New || e.New == "" {
		return nil
	}
	if c.store.Has(e.New) || claimed[e.New] {
		return store.NewNameCollisionError(e.New)
	}
	if e.Old == "" {
		return &Error{Code: ErrCodeNoSourceCommand, Key: e.Key, Name: e.New, Message: "slot holds no command to rename"}
	}
	if !c.store.Has(e.Old) {
		return store.NewNotFoundError(e.Old)
	}
	claimed[e.New] = true
	return nil
}

// EditSlot sets one slot value and applies it to the store. The slot is
// only written when the store accepted the change.
func (c *Controller) EditSlot(ctx context.Context, key, value string) error {
	return c.EditSlots(ctx, map[string]string{key: value})
}

// EditSlots sets several slot values as one batch. A refused batch writes
// nothing. When the store fails part way, the slots of the edits it already
// committed are still written so the slot list keeps naming stored
// commands, and the store error is returned.
func (c *Controller) EditSlots(ctx context.Context, values map[string]string) error {
	for key := range values {
		if !c.slots.Owns(key) {
			return &Error{Code: ErrCodeUnknownSlot, Key: key, Message: "not a slot of this device"}
		}
	}
	current, err := c.slots.Values(ctx)
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	slices.SortFunc(keys, func(a, b string) int {
		ia, _ := slots.Index(a)
		ib, _ := slots.Index(b)
		return ia - ib
	})

	edits := make([]SlotEdit, 0, len(keys))
	written := make(map[string]string, len(keys))
	for _, key := range keys {
		idx, _ := slots.Index(key)
		edits = append(edits, SlotEdit{Key: key, Old: current[idx], New: values[key]})
		written[key] = store.NormalizeName(values[key])
	}

	applied, err := c.applySlotEdits(ctx, edits)
	if err != nil {
		if len(applied) > 0 {
			partial := make(map[string]string, len(applied))
			for _, e := range applied {
				partial[e.Key] = written[e.Key]
			}
			if perr := c.slots.PutAll(ctx, partial); perr != nil {
				c.logger.Error("slot list out of sync with store", "error", perr)
			}
		}
		return err
	}
	return c.slots.PutAll(ctx, written)
}

// Rename renames a command through its slot. A command without a slot is
// renamed in the store directly.
func (c *Controller) Rename(ctx context.Context, oldName, newName string) error {
	key, ok, err := c.slots.Lookup(ctx, store.NormalizeName(oldName))
	if err != nil {
		return err
	}
	if ok {
		if store.NormalizeName(newName) == "" {
			return &store.Error{Code: store.ErrCodeInvalidName, Message: "command name must not be empty"}
		}
		return c.EditSlot(ctx, key, newName)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Rename(ctx, oldName, newName)
}

// Delete removes a command and empties its slot. Deleting an unknown
// command is a no-op.
func (c *Controller) Delete(ctx context.Context, name string) error {
	key, ok, err := c.slots.Lookup(ctx, store.NormalizeName(name))
	if err != nil {
		return err
	}
	if ok {
		return c.EditSlot(ctx, key, "")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Delete(ctx, name)
}
