package protocol

// BuildRequest formats the single GET request sent per fetch:
//
//	GET / HTTP/1.1\r\nHost: {host}\r\nConnection: Close\r\n\r\n
//
// The host is copied verbatim. Non-ASCII characters in host are not escaped;
// config validation rejects them before a request is built.
func BuildRequest(host string) []byte {
	buf := make([]byte, 0, len("GET / HTTP/1.1\r\nHost: \r\nConnection: Close\r\n\r\n")+len(host))

	// Request line
	buf = append(buf, "GET / HTTP/1.1\r\n"...)

	// Headers
	buf = append(buf, "Host: "...)
	buf = append(buf, host...)
	buf = append(buf, "\r\n"...)
	buf = append(buf, "Connection: Close\r\n"...)

	// Blank line
	buf = append(buf, "\r\n"...)

	return buf
}
