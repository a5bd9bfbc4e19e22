// Package models provides the interacting-bank system fed to the simulator.
//
// N banks hold log-monetary reserves X^i that revert toward the
// cross-sectional mean:
//
//	dX^i = alpha_i (mean(X) - X^i) dt + sigma_i dW^i
//
// or, over a fixed undirected graph A with self-loops,
//
//	dX^i = (alpha_i / N) sum_j A_ij (X^j - X^i) dt + sigma_i dW^i
//
// A bank defaults when its reserve reaches the level Eta. Coefficients are
// either one scalar for every bank or one value per bank.
package models
