// Package queue persists pipeline jobs in SQLite and hands them to workers.
//
// A job row records the input reference, the stage the job is in, and the
// outputs of completed stages (extracted units, processed unit ids, stored row
// count) so that a worker picking up an interrupted job resumes at the stage it
// was in. Workers claim jobs through a lease (owner + heartbeat); leases whose
// heartbeat expires are reclaimed without touching the job status.
//
// Status changes are compare-and-swap on (id, status, run): a job only moves
// forward through pending, extracting, processing, storing, completed, and any
// non-terminal status may move to failed.
package queue
