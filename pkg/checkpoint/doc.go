// Package checkpoint records which targets of a run have completed so an
// interrupted run can be resumed without re-scraping them.
//
// A run is identified by a key derived from its mode and planned target IDs,
// so re-running the same request finds the same checkpoint. Checkpoints are
// stored in platform-specific data directories:
//   - Linux: ~/.local/share/postscraper/checkpoints/
//   - macOS: ~/Library/Application Support/postscraper/checkpoints/
//   - Windows: %APPDATA%/postscraper/checkpoints/
//
// Checkpoint files are saved atomically and carry a version number.
package checkpoint
