// Package embedding implements the process stage: every extracted frame is
// turned into a 512-dimension vector and written to the embedding store.
//
// Frames are handled in fixed-size batches, strictly in order and one at a
// time. Before computing a vector the Guard asks the store whether the
// (job_id, unit_id) key already exists, so a retried attempt skips the work
// an earlier attempt finished. Any error aborts the whole invocation and the
// activity executor decides whether to retry it.
package embedding
