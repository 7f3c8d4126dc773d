package server

// ANSI escapes for the development route table
const (
	ansiGreen   = "\033[32m"
	ansiBlue    = "\033[34m"
	ansiCyan    = "\033[36m"
	ansiYellow  = "\033[33m"
	ansiMagenta = "\033[35m"
	ansiGray    = "\033[90m"
	ansiReset   = "\033[0m"
)

var methodColours = map[string]string{
	"GET":    ansiGreen,
	"POST":   ansiBlue,
	"PUT":    ansiCyan,
	"DELETE": ansiYellow,
	"PATCH":  ansiMagenta,
}

// colourMethod wraps label in the colour of the HTTP method. Patterns
// registered without a method print gray.
func colourMethod(label, method string) string {
	colour, ok := methodColours[method]
	if !ok {
		colour = ansiGray
	}
	return colour + label + ansiReset
}
