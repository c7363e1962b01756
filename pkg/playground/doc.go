// Package playground implements the execution request controller behind
// the demo page.
//
// A [Controller] owns one visitor's editor state: the selected language,
// the code and stdin buffers, the last output and error, and whether a run
// is in flight. All mutation goes through its methods; readers get copies
// via [Controller.State] or a subscription channel.
//
// Overlapping submissions are not prevented. Each submission takes the next
// generation number and its result is applied only if no newer submission
// has started in the meantime, so the visible result always belongs to the
// most recent submission.
package playground
