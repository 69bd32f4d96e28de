// Package tracefile names, creates and reads trace files.
//
// One trace file is written per process run. Its name is derived from the
// run's start time so that files sort chronologically in a listing. Reading is
// forward-only: a Reader yields each record once and cannot be rewound.
package tracefile
