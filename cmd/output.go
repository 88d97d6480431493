package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"strconv"

	"github.com/roomlink/roomlink/internal/directory"
	"github.com/roomlink/roomlink/internal/ui"
	"github.com/vmihailenco/msgpack/v5"
)

// Output formats
const (
	formatBox     = "box"
	formatTable   = "table"
	formatText    = "text"
	formatJSON    = "json"
	formatMsgpack = "msgpack"
)

func machineReadable(format string) bool {
	return format == formatJSON || format == formatMsgpack
}

// spinnerFor keeps machine-readable output free of spinner frames.
func spinnerFor(format, message string, run func(string) func()) func() {
	if machineReadable(format) {
		return func() {}
	}
	return run(message)
}

// locked reports whether the room's wire password is set to anything but
// an empty string or null.
func locked(room *directory.Room) bool {
	var password any
	ok, err := room.Field("password", &password)
	return ok && err == nil && password != nil && password != ""
}

func roomItem(index int, room *directory.Room) ui.RoomTableItem {
	return ui.RoomTableItem{
		Index:       index,
		ID:          room.ID(),
		Server:      net.JoinHostPort(room.Server.Host, strconv.Itoa(room.Server.Port)),
		Application: room.ApplicationName,
		Version:     room.Version,
		Locked:      locked(room),
	}
}

func roomItems(rooms []*directory.Room) []ui.RoomTableItem {
	items := make([]ui.RoomTableItem, len(rooms))
	for i, room := range rooms {
		items[i] = roomItem(i+1, room)
	}
	return items
}

// writeRoom prints a created room.
func writeRoom(w io.Writer, room *directory.Room, format string) error {
	switch format {
	case formatBox:
		_, err := fmt.Fprintln(w, ui.RoomInfoView(roomItem(1, room)))
		return err
	case formatJSON:
		return writeJSON(w, room)
	case formatMsgpack:
		m, err := room.Map()
		if err != nil {
			return err
		}
		return msgpack.NewEncoder(w).Encode(m)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

// writeRooms prints search results.
func writeRooms(w io.Writer, rooms []*directory.Room, format string) error {
	switch format {
	case formatTable:
		_, err := fmt.Fprintln(w, ui.RoomTableView(roomItems(rooms)))
		return err
	case formatText:
		_, err := fmt.Fprintln(w, ui.RoomTextView(roomItems(rooms)))
		return err
	case formatJSON:
		return writeJSON(w, rooms)
	case formatMsgpack:
		list := make([]map[string]any, 0, len(rooms))
		for _, room := range rooms {
			m, err := room.Map()
			if err != nil {
				return err
			}
			list = append(list, m)
		}
		return msgpack.NewEncoder(w).Encode(list)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
