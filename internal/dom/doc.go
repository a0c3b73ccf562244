// Package dom describes rendered document trees and the capabilities the
// export engine needs from whatever renders them.
//
// The engine never touches a browser directly. It works on layout snapshots
// ([Node]) and asks a [Surface] to materialize off-screen copies of parts of
// the document, capture them as bitmaps and remove them again. A headless
// Chrome page is the production surface; tests use the in-memory fake from
// the domtest subpackage.
//
// Every temporary copy must be created through a [Scope] so that it is
// removed on every exit path, including cancellation.
package dom
