// Package dirinfo offers a read-only aggregated view of a directory's
// container file, shaped for icon-view consumers that want one snapshot
// instead of record-by-record lookups.
package dirinfo

import (
	"os"
	"path/filepath"

	"github.com/DSStoreKit/dsstore/pkg/store"
)

// ContainerName is the file the snapshot is read from.
const ContainerName = ".DS_Store"

// Defaults reported when the directory has no record for a setting.
const (
	DefaultIconSize    = 64
	DefaultGridSpacing = 54
	DefaultTextSize    = 12
)

// FileInfo is the per-file slice of a snapshot.
type FileInfo struct {
	IconX, IconY int32
	HasIcon      bool
	Comments     string
	Label        store.LabelColor
}

// Info is an immutable snapshot of one directory's display settings.
type Info struct {
	// Dir is the directory the snapshot was taken of. Exists is false
	// when it had no container file; such a snapshot carries defaults.
	Dir    string
	Exists bool

	ViewStyle       store.ViewStyle
	IconSize        int32
	GridSpacing     int32
	TextSize        int32
	LabelPosition   store.LabelPosition
	Background      store.BackgroundType
	BackgroundColor store.Color
	BackgroundImage string
	SidebarWidth    int32

	// Files holds per-file settings keyed by filename as recorded.
	Files map[string]FileInfo
}

func emptyInfo(dir string) *Info {
	return &Info{
		Dir:         dir,
		ViewStyle:   store.ViewStyleIcon,
		IconSize:    DefaultIconSize,
		GridSpacing: DefaultGridSpacing,
		TextSize:    DefaultTextSize,
		Files:       make(map[string]FileInfo),
	}
}

// Load snapshots dir's container file. A missing file is not an error;
// it yields a snapshot of defaults with Exists false. A present but
// malformed file is reported as an error.
func Load(dir string) (*Info, error) {
	info := emptyInfo(dir)
	path := filepath.Join(dir, ContainerName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return info, nil
	}
	s, err := store.Open(path)
	if err != nil {
		return nil, err
	}
	info.Exists = true

	if style, ok := s.ViewStyle(); ok {
		info.ViewStyle = style
	}
	if size, ok := s.IconSize(); ok {
		info.IconSize = size
	}
	if spacing, ok := s.GridSpacing(); ok {
		info.GridSpacing = spacing
	}
	if size, ok := s.TextSize(); ok {
		info.TextSize = size
	}
	if pos, ok := s.LabelPosition(); ok {
		info.LabelPosition = pos
	}
	if width, ok := s.SidebarWidth(); ok {
		info.SidebarWidth = width
	}
	info.Background = s.BackgroundType()
	if c, ok := s.BackgroundColor(); ok {
		info.BackgroundColor = c
	}
	if path, ok := s.BackgroundImagePath(); ok {
		info.BackgroundImage = path
	}

	for _, name := range s.Filenames() {
		if name == store.DirectoryEntry {
			continue
		}
		var f FileInfo
		if x, y, ok := s.IconLocation(name); ok {
			f.IconX, f.IconY, f.HasIcon = x, y, true
		}
		if comments, ok := s.Comments(name); ok {
			f.Comments = comments
		}
		if label, ok := s.LabelColor(name); ok {
			f.Label = label
		}
		if f != (FileInfo{}) {
			info.Files[name] = f
		}
	}
	return info, nil
}
