// Package extractors holds the text extractors that turn downloaded
// documents into plain text for lesson parsing. Each subpackage handles one
// family of file extensions.
package extractors
