// Package render draws a difference field as a map figure.
//
// The figure is a gonum/plot heat map with longitude on the x axis and
// latitude on the y axis, coloured with the Moreland smooth blue-red
// diverging palette. A horizontal colour bar labelled "%" sits under the
// map. Colour limits come from the field's scale: cells below the lower
// bound take the first palette colour, cells above the upper bound take
// the last, and NaN cells are left transparent.
//
// Output is PNG, sized by the render section of the configuration.
package render
