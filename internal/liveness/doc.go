// Package liveness probes the OS process table to classify recorded
// pipeline PIDs as alive, foreign, zombie, or gone.
package liveness
