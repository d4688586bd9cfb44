package store

// The container records icon positions with a top-left origin and y
// increasing downward. Hosts with a bottom-left origin convert with
// these helpers; both need the containing view's height and the icon
// height. The mapping is its own inverse.

// PointFromTopLeft converts a stored icon position to a bottom-left
// origin coordinate system.
func PointFromTopLeft(x, y, viewHeight, iconHeight float64) (float64, float64) {
	return x, viewHeight - y - iconHeight
}

// PointToTopLeft converts a bottom-left origin position to the stored
// top-left origin form.
func PointToTopLeft(x, y, viewHeight, iconHeight float64) (float64, float64) {
	return x, viewHeight - y - iconHeight
}
