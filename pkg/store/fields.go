package store

import (
	"encoding/binary"
	"sort"
	"strings"
	"time"

	"github.com/DSStoreKit/dsstore/pkg/codec"
)

// DirectoryEntry is the filename under which a directory's own
// settings are recorded.
const DirectoryEntry = "."

// Field codes. Codes marked (vendor) appear in files written by the
// format's original ecosystem; the remaining codes carry settings that
// ecosystem keeps inside opaque property-list blobs and are stored
// here as plainly typed records instead.
const (
	CodeIconLocation      = "Iloc" // blob, 16 bytes (vendor)
	CodeBackground        = "BKGD" // blob, 12 bytes (vendor)
	CodeBackgroundImage   = "pict" // ustr path; vendor stores an alias blob
	CodeViewStyle         = "vstl" // type (vendor)
	CodeComments          = "cmmt" // ustr (vendor)
	CodeLogicalSize       = "lg1S" // comp (vendor)
	CodeLogicalSizeOld    = "logS" // comp (vendor, older files)
	CodePhysicalSize      = "ph1S" // comp (vendor)
	CodePhysicalSizeOld   = "phyS" // comp (vendor, older files)
	CodeModificationDate  = "moDD" // dutc (vendor)
	CodeSidebarWidth      = "fwsw" // long (vendor)
	CodeWindowInfo        = "fwi0" // blob, 16 bytes (vendor)
	CodeIconSize          = "icsz" // long
	CodeGridSpacing       = "grsp" // long
	CodeTextSize          = "txsz" // long
	CodeLabelPosition     = "lbps" // long
	CodeLabelColor        = "lclr" // long
	CodeIconArrangement   = "iarr" // long
	CodeSortBy            = "srtb" // ustr
	CodeShowItemInfo      = "shii" // bool
	CodeShowIconPreview   = "shpr" // bool
	CodeShowToolbar       = "shtb" // bool
	CodeShowSidebar       = "shsb" // bool
	CodeShowPathBar       = "shpb" // bool
	CodeShowStatusBar     = "shst" // bool
	CodeShowRelativeDates = "reld" // bool
	CodeVisibleColumns    = "cols" // ustr, comma separated
	CodeColumnWidths      = "colw" // blob
)

// ViewStyle names the directory presentation mode.
type ViewStyle string

const (
	ViewStyleIcon      ViewStyle = "icnv"
	ViewStyleList      ViewStyle = "Nlsv"
	ViewStyleColumn    ViewStyle = "clmv"
	ViewStyleGallery   ViewStyle = "glyv"
	ViewStyleCoverflow ViewStyle = "Flwv"
)

// BackgroundType is the directory background mode from the BKGD record.
type BackgroundType int

const (
	BackgroundDefault BackgroundType = iota
	BackgroundColor
	BackgroundPicture
)

// Background mode tags inside the BKGD blob.
const (
	backgroundTagDefault = "DefB"
	backgroundTagColor   = "ClrB"
	backgroundTagPicture = "PctB"
)

// LabelColor is a file label color index.
type LabelColor int

const (
	LabelNone LabelColor = iota
	LabelRed
	LabelOrange
	LabelYellow
	LabelGreen
	LabelBlue
	LabelPurple
	LabelGrey
)

// LabelPosition places icon labels.
type LabelPosition int

const (
	LabelBottom LabelPosition = iota
	LabelRight
)

// IconArrangement is the icon view layout mode.
type IconArrangement int

const (
	ArrangementNone IconArrangement = iota
	ArrangementGrid
)

// SortBy values for the directory sort order record.
const (
	SortByName         = "name"
	SortByDateModified = "dateModified"
	SortByDateCreated  = "dateCreated"
	SortBySize         = "size"
	SortByKind         = "kind"
	SortByLabel        = "label"
	SortByDateAdded    = "dateAdded"
)

// mustSet stores a value under a library-defined code; the code is
// statically valid so errors cannot occur.
func (s *Store) mustSet(filename, code string, v codec.Value) {
	if err := s.Set(filename, code, v); err != nil {
		panic("store: " + err.Error())
	}
}

// BoolValue returns a boolean record's value.
func (s *Store) BoolValue(filename, code string) (bool, bool) {
	v, ok := s.Get(filename, code)
	if !ok {
		return false, false
	}
	return v.Bool()
}

// SetBoolValue stores a boolean record.
func (s *Store) SetBoolValue(filename, code string, value bool) error {
	return s.Set(filename, code, codec.Bool(value))
}

// LongValue returns an integer record's value.
func (s *Store) LongValue(filename, code string) (int32, bool) {
	v, ok := s.Get(filename, code)
	if !ok {
		return 0, false
	}
	return v.Int32()
}

// SetLongValue stores an integer record.
func (s *Store) SetLongValue(filename, code string, value int32) error {
	return s.Set(filename, code, codec.Long(value))
}

// IconLocation returns a file's stored icon position in the
// container's top-left-origin coordinates.
func (s *Store) IconLocation(filename string) (x, y int32, ok bool) {
	v, found := s.Get(filename, CodeIconLocation)
	if !found {
		return 0, 0, false
	}
	blob, isBlob := v.Blob()
	if !isBlob || len(blob) < 8 {
		return 0, 0, false
	}
	return int32(binary.BigEndian.Uint32(blob[0:4])), int32(binary.BigEndian.Uint32(blob[4:8])), true
}

// SetIconLocation stores a file's icon position.
func (s *Store) SetIconLocation(filename string, x, y int32) {
	blob := make([]byte, 16)
	binary.BigEndian.PutUint32(blob[0:4], uint32(x))
	binary.BigEndian.PutUint32(blob[4:8], uint32(y))
	// Trailing filler matches files written by the original ecosystem.
	copy(blob[8:14], []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF})
	s.mustSet(filename, CodeIconLocation, codec.Blob(blob))
}

// BackgroundType returns the directory background mode.
func (s *Store) BackgroundType() BackgroundType {
	v, ok := s.Get(DirectoryEntry, CodeBackground)
	if !ok {
		return BackgroundDefault
	}
	blob, isBlob := v.Blob()
	if !isBlob || len(blob) < 4 {
		return BackgroundDefault
	}
	switch string(blob[0:4]) {
	case backgroundTagColor:
		return BackgroundColor
	case backgroundTagPicture:
		return BackgroundPicture
	}
	return BackgroundDefault
}

// BackgroundColor returns the directory's solid background color.
func (s *Store) BackgroundColor() (Color, bool) {
	v, ok := s.Get(DirectoryEntry, CodeBackground)
	if !ok {
		return Color{}, false
	}
	blob, isBlob := v.Blob()
	if !isBlob || len(blob) < 10 || string(blob[0:4]) != backgroundTagColor {
		return Color{}, false
	}
	return Color{
		R: binary.BigEndian.Uint16(blob[4:6]),
		G: binary.BigEndian.Uint16(blob[6:8]),
		B: binary.BigEndian.Uint16(blob[8:10]),
	}, true
}

// SetBackgroundColor sets a solid background color for the directory.
func (s *Store) SetBackgroundColor(c Color) {
	blob := make([]byte, 12)
	copy(blob[0:4], backgroundTagColor)
	binary.BigEndian.PutUint16(blob[4:6], c.R)
	binary.BigEndian.PutUint16(blob[6:8], c.G)
	binary.BigEndian.PutUint16(blob[8:10], c.B)
	s.mustSet(DirectoryEntry, CodeBackground, codec.Blob(blob))
}

// BackgroundImagePath returns the directory's background image path.
func (s *Store) BackgroundImagePath() (string, bool) {
	v, ok := s.Get(DirectoryEntry, CodeBackgroundImage)
	if !ok {
		return "", false
	}
	return v.String()
}

// SetBackgroundImagePath sets a background picture for the directory.
func (s *Store) SetBackgroundImagePath(path string) {
	blob := make([]byte, 12)
	copy(blob[0:4], backgroundTagPicture)
	binary.BigEndian.PutUint32(blob[4:8], uint32(len(path)))
	s.mustSet(DirectoryEntry, CodeBackground, codec.Blob(blob))
	s.mustSet(DirectoryEntry, CodeBackgroundImage, codec.UString(path))
}

// ClearBackground restores the default directory background.
func (s *Store) ClearBackground() {
	blob := make([]byte, 12)
	copy(blob[0:4], backgroundTagDefault)
	s.mustSet(DirectoryEntry, CodeBackground, codec.Blob(blob))
	s.Remove(DirectoryEntry, CodeBackgroundImage)
}

// ViewStyle returns the directory's presentation mode.
func (s *Store) ViewStyle() (ViewStyle, bool) {
	v, ok := s.Get(DirectoryEntry, CodeViewStyle)
	if !ok {
		return "", false
	}
	tag, isType := v.String()
	if !isType {
		return "", false
	}
	return ViewStyle(tag), true
}

// SetViewStyle sets the directory's presentation mode.
func (s *Store) SetViewStyle(style ViewStyle) error {
	v, err := codec.Type(string(style))
	if err != nil {
		return err
	}
	return s.Set(DirectoryEntry, CodeViewStyle, v)
}

// IconSize returns the directory's icon size in points.
func (s *Store) IconSize() (int32, bool) {
	return s.LongValue(DirectoryEntry, CodeIconSize)
}

// SetIconSize sets the directory's icon size.
func (s *Store) SetIconSize(size int32) {
	s.mustSet(DirectoryEntry, CodeIconSize, codec.Long(size))
}

// GridSpacing returns the icon grid spacing.
func (s *Store) GridSpacing() (int32, bool) {
	return s.LongValue(DirectoryEntry, CodeGridSpacing)
}

// SetGridSpacing sets the icon grid spacing.
func (s *Store) SetGridSpacing(spacing int32) {
	s.mustSet(DirectoryEntry, CodeGridSpacing, codec.Long(spacing))
}

// TextSize returns the label text size.
func (s *Store) TextSize() (int32, bool) {
	return s.LongValue(DirectoryEntry, CodeTextSize)
}

// SetTextSize sets the label text size.
func (s *Store) SetTextSize(size int32) {
	s.mustSet(DirectoryEntry, CodeTextSize, codec.Long(size))
}

// LabelPosition returns where icon labels are placed.
func (s *Store) LabelPosition() (LabelPosition, bool) {
	n, ok := s.LongValue(DirectoryEntry, CodeLabelPosition)
	if !ok {
		return LabelBottom, false
	}
	return LabelPosition(n), true
}

// SetLabelPosition sets where icon labels are placed.
func (s *Store) SetLabelPosition(pos LabelPosition) {
	s.mustSet(DirectoryEntry, CodeLabelPosition, codec.Long(int32(pos)))
}

// ShowItemInfo reports whether item info lines are shown.
func (s *Store) ShowItemInfo() (bool, bool) {
	return s.BoolValue(DirectoryEntry, CodeShowItemInfo)
}

// SetShowItemInfo toggles item info lines.
func (s *Store) SetShowItemInfo(show bool) {
	s.mustSet(DirectoryEntry, CodeShowItemInfo, codec.Bool(show))
}

// ShowIconPreview reports whether icon previews are shown.
func (s *Store) ShowIconPreview() (bool, bool) {
	return s.BoolValue(DirectoryEntry, CodeShowIconPreview)
}

// SetShowIconPreview toggles icon previews.
func (s *Store) SetShowIconPreview(show bool) {
	s.mustSet(DirectoryEntry, CodeShowIconPreview, codec.Bool(show))
}

// IconArrangement returns the icon view layout mode.
func (s *Store) IconArrangement() (IconArrangement, bool) {
	n, ok := s.LongValue(DirectoryEntry, CodeIconArrangement)
	if !ok {
		return ArrangementNone, false
	}
	return IconArrangement(n), true
}

// SetIconArrangement sets the icon view layout mode.
func (s *Store) SetIconArrangement(a IconArrangement) {
	s.mustSet(DirectoryEntry, CodeIconArrangement, codec.Long(int32(a)))
}

// SortBy returns the directory's sort order name.
func (s *Store) SortBy() (string, bool) {
	v, ok := s.Get(DirectoryEntry, CodeSortBy)
	if !ok {
		return "", false
	}
	return v.String()
}

// SetSortBy sets the directory's sort order name.
func (s *Store) SetSortBy(sortBy string) {
	s.mustSet(DirectoryEntry, CodeSortBy, codec.UString(sortBy))
}

// SidebarWidth returns the window sidebar width.
func (s *Store) SidebarWidth() (int32, bool) {
	return s.LongValue(DirectoryEntry, CodeSidebarWidth)
}

// SetSidebarWidth sets the window sidebar width.
func (s *Store) SetSidebarWidth(width int32) {
	s.mustSet(DirectoryEntry, CodeSidebarWidth, codec.Long(width))
}

// ShowToolbar reports the window toolbar visibility.
func (s *Store) ShowToolbar() (bool, bool) {
	return s.BoolValue(DirectoryEntry, CodeShowToolbar)
}

// SetShowToolbar toggles the window toolbar.
func (s *Store) SetShowToolbar(show bool) {
	s.mustSet(DirectoryEntry, CodeShowToolbar, codec.Bool(show))
}

// ShowSidebar reports the window sidebar visibility.
func (s *Store) ShowSidebar() (bool, bool) {
	return s.BoolValue(DirectoryEntry, CodeShowSidebar)
}

// SetShowSidebar toggles the window sidebar.
func (s *Store) SetShowSidebar(show bool) {
	s.mustSet(DirectoryEntry, CodeShowSidebar, codec.Bool(show))
}

// ShowPathBar reports the window path bar visibility.
func (s *Store) ShowPathBar() (bool, bool) {
	return s.BoolValue(DirectoryEntry, CodeShowPathBar)
}

// SetShowPathBar toggles the window path bar.
func (s *Store) SetShowPathBar(show bool) {
	s.mustSet(DirectoryEntry, CodeShowPathBar, codec.Bool(show))
}

// ShowStatusBar reports the window status bar visibility.
func (s *Store) ShowStatusBar() (bool, bool) {
	return s.BoolValue(DirectoryEntry, CodeShowStatusBar)
}

// SetShowStatusBar toggles the window status bar.
func (s *Store) SetShowStatusBar(show bool) {
	s.mustSet(DirectoryEntry, CodeShowStatusBar, codec.Bool(show))
}

// ShowRelativeDates reports whether list views use relative dates.
func (s *Store) ShowRelativeDates() (bool, bool) {
	return s.BoolValue(DirectoryEntry, CodeShowRelativeDates)
}

// SetShowRelativeDates toggles relative dates in list views.
func (s *Store) SetShowRelativeDates(show bool) {
	s.mustSet(DirectoryEntry, CodeShowRelativeDates, codec.Bool(show))
}

// LabelColor returns a file's label color.
func (s *Store) LabelColor(filename string) (LabelColor, bool) {
	n, ok := s.LongValue(filename, CodeLabelColor)
	if !ok {
		return LabelNone, false
	}
	return LabelColor(n), true
}

// SetLabelColor sets a file's label color.
func (s *Store) SetLabelColor(filename string, color LabelColor) {
	s.mustSet(filename, CodeLabelColor, codec.Long(int32(color)))
}

// Comments returns a file's comments.
func (s *Store) Comments(filename string) (string, bool) {
	v, ok := s.Get(filename, CodeComments)
	if !ok {
		return "", false
	}
	return v.String()
}

// SetComments sets a file's comments.
func (s *Store) SetComments(filename, comments string) {
	s.mustSet(filename, CodeComments, codec.UString(comments))
}

// LogicalSize returns a file's recorded logical size, consulting the
// older record code when the newer one is absent.
func (s *Store) LogicalSize(filename string) (int64, bool) {
	for _, code := range []string{CodeLogicalSize, CodeLogicalSizeOld} {
		if v, ok := s.Get(filename, code); ok {
			return v.Int64()
		}
	}
	return 0, false
}

// SetLogicalSize records a file's logical size.
func (s *Store) SetLogicalSize(filename string, size int64) {
	s.mustSet(filename, CodeLogicalSize, codec.Comp(size))
}

// PhysicalSize returns a file's recorded on-disk size, consulting the
// older record code when the newer one is absent.
func (s *Store) PhysicalSize(filename string) (int64, bool) {
	for _, code := range []string{CodePhysicalSize, CodePhysicalSizeOld} {
		if v, ok := s.Get(filename, code); ok {
			return v.Int64()
		}
	}
	return 0, false
}

// SetPhysicalSize records a file's on-disk size.
func (s *Store) SetPhysicalSize(filename string, size int64) {
	s.mustSet(filename, CodePhysicalSize, codec.Comp(size))
}

// ModificationDate returns a file's recorded modification time.
func (s *Store) ModificationDate(filename string) (time.Time, bool) {
	v, ok := s.Get(filename, CodeModificationDate)
	if !ok {
		return time.Time{}, false
	}
	return v.Time()
}

// SetModificationDate records a file's modification time.
func (s *Store) SetModificationDate(filename string, t time.Time) {
	s.mustSet(filename, CodeModificationDate, codec.DUTCTime(t))
}

// WindowFrame is the saved window geometry from the fwi0 record.
type WindowFrame struct {
	Top, Left, Bottom, Right uint16
	View                     ViewStyle
}

// WindowFrame returns the directory's saved window geometry.
func (s *Store) WindowFrame() (WindowFrame, bool) {
	v, ok := s.Get(DirectoryEntry, CodeWindowInfo)
	if !ok {
		return WindowFrame{}, false
	}
	blob, isBlob := v.Blob()
	if !isBlob || len(blob) < 12 {
		return WindowFrame{}, false
	}
	return WindowFrame{
		Top:    binary.BigEndian.Uint16(blob[0:2]),
		Left:   binary.BigEndian.Uint16(blob[2:4]),
		Bottom: binary.BigEndian.Uint16(blob[4:6]),
		Right:  binary.BigEndian.Uint16(blob[6:8]),
		View:   ViewStyle(blob[8:12]),
	}, true
}

// SetWindowFrame saves the directory's window geometry.
func (s *Store) SetWindowFrame(f WindowFrame) {
	blob := make([]byte, 16)
	binary.BigEndian.PutUint16(blob[0:2], f.Top)
	binary.BigEndian.PutUint16(blob[2:4], f.Left)
	binary.BigEndian.PutUint16(blob[4:6], f.Bottom)
	binary.BigEndian.PutUint16(blob[6:8], f.Right)
	copy(blob[8:12], string(f.View))
	s.mustSet(DirectoryEntry, CodeWindowInfo, codec.Blob(blob))
}

// VisibleColumns returns the list view's visible column names.
func (s *Store) VisibleColumns() ([]string, bool) {
	v, ok := s.Get(DirectoryEntry, CodeVisibleColumns)
	if !ok {
		return nil, false
	}
	joined, isStr := v.String()
	if !isStr || joined == "" {
		return nil, isStr
	}
	return strings.Split(joined, ","), true
}

// SetVisibleColumns sets the list view's visible column names.
func (s *Store) SetVisibleColumns(columns []string) {
	s.mustSet(DirectoryEntry, CodeVisibleColumns, codec.UString(strings.Join(columns, ",")))
}

// ColumnVisible reports whether a named column is visible.
func (s *Store) ColumnVisible(name string) bool {
	columns, ok := s.VisibleColumns()
	if !ok {
		return false
	}
	for _, c := range columns {
		if c == name {
			return true
		}
	}
	return false
}

// SetColumnVisible adds or removes a column from the visible set.
func (s *Store) SetColumnVisible(name string, visible bool) {
	columns, _ := s.VisibleColumns()
	out := make([]string, 0, len(columns)+1)
	for _, c := range columns {
		if c != name {
			out = append(out, c)
		}
	}
	if visible {
		out = append(out, name)
	}
	s.SetVisibleColumns(out)
}

// ColumnWidth returns a named list view column's width.
func (s *Store) ColumnWidth(name string) (int32, bool) {
	widths := s.columnWidths()
	w, ok := widths[name]
	return w, ok
}

// SetColumnWidth sets a named list view column's width.
func (s *Store) SetColumnWidth(name string, width int32) {
	widths := s.columnWidths()
	widths[name] = width

	names := make([]string, 0, len(widths))
	for n := range widths {
		names = append(names, n)
	}
	sort.Strings(names)

	var blob []byte
	blob = binary.BigEndian.AppendUint32(blob, uint32(len(names)))
	for _, n := range names {
		blob = append(blob, byte(len(n)))
		blob = append(blob, n...)
		blob = binary.BigEndian.AppendUint32(blob, uint32(widths[n]))
	}
	s.mustSet(DirectoryEntry, CodeColumnWidths, codec.Blob(blob))
}

// columnWidths decodes the column width blob; malformed data yields an
// empty map rather than an error, since it only tunes presentation.
func (s *Store) columnWidths() map[string]int32 {
	widths := make(map[string]int32)
	v, ok := s.Get(DirectoryEntry, CodeColumnWidths)
	if !ok {
		return widths
	}
	blob, isBlob := v.Blob()
	if !isBlob || len(blob) < 4 {
		return widths
	}
	count := binary.BigEndian.Uint32(blob[0:4])
	pos := 4
	for i := uint32(0); i < count; i++ {
		if pos >= len(blob) {
			break
		}
		n := int(blob[pos])
		pos++
		if len(blob)-pos < n+4 {
			break
		}
		name := string(blob[pos : pos+n])
		pos += n
		widths[name] = int32(binary.BigEndian.Uint32(blob[pos:]))
		pos += 4
	}
	return widths
}
