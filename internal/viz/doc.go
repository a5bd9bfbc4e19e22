// Package viz renders bank trajectories.
//
// Three outputs are provided:
//
//   - [Plot]: terminal line chart of particle paths and their mean
//   - [Render]: PNG, SVG or PDF figure via gonum/plot
//   - [Live]: Bubble Tea replay of a run, step by step
//
// Every view draws the cross-sectional mean as the highlighted series,
// with individual paths behind it when requested.
package viz
