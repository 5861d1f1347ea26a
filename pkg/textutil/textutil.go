// Package textutil holds the escaping helpers used when text is handed to the
// web page, and a cut-set trim.
package textutil

import "strings"

var urlReplacer = strings.NewReplacer(
	"%", "%25",
	"&", "%26",
	"<", "%3C",
	">", "%3E",
)

var xmlReplacer = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	"\"", "&quot;",
)

// ToURL prepares text for the web page, where it is decoded with
// decodeURIComponent(). Control characters other than TAB, LF and CR are
// invalid in XML and get replaced with '?'.
func ToURL(data string) string {
	b := []byte(urlReplacer.Replace(data))

	for i, c := range b {
		if !validXMLByte(c) {
			b[i] = '?'
		}
	}

	return string(b)
}

func validXMLByte(c byte) bool {
	return c == 0x09 || c == 0x0A || c == 0x0D || c >= 0x20
}

// ToXML escapes the XML special characters in data
func ToXML(data string) string {
	return xmlReplacer.Replace(data)
}

// Trim removes every leading and trailing byte of data that occurs in chars
func Trim(data string, chars string) string {
	start := 0
	for start < len(data) && strings.IndexByte(chars, data[start]) != -1 {
		start++
	}

	end := len(data)
	for end > start && strings.IndexByte(chars, data[end-1]) != -1 {
		end--
	}

	return data[start:end]
}
