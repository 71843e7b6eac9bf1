package threat

import (
	"fmt"
	"net/url"
	"strconv"
)

// scannedHeaders limita o scan aos headers que carregam input do cliente
var scannedHeaders = []string{"User-Agent", "Referer", "X-Forwarded-For", "Cookie"}

// FlattenValues achata url.Values (query/form) com caminhos bracket
// para valores repetidos: `q`, `q[1]`, `q[2]`
func FlattenValues(prefix string, values url.Values, out map[string]string) {
	for key, list := range values {
		for i, v := range list {
			path := prefix + "." + key
			if i > 0 {
				path += "[" + strconv.Itoa(i) + "]"
			}
			out[path] = v
		}
	}
}

// FlattenJSON achata um corpo JSON decodificado: objetos com ponto,
// arrays com índice bracket (`items[0].name`)
func FlattenJSON(prefix string, value interface{}, out map[string]string) {
	switch typed := value.(type) {
	case map[string]interface{}:
		for key, nested := range typed {
			FlattenJSON(prefix+"."+key, nested, out)
		}
	case []interface{}:
		for i, nested := range typed {
			FlattenJSON(fmt.Sprintf("%s[%d]", prefix, i), nested, out)
		}
	case string:
		out[prefix] = typed
	case float64:
		out[prefix] = strconv.FormatFloat(typed, 'f', -1, 64)
	case bool:
		out[prefix] = strconv.FormatBool(typed)
	case nil:
		// valores nulos não carregam payload
	default:
		out[prefix] = fmt.Sprint(typed)
	}
}

// FlattenHeaders achata os headers relevantes para o scan
func FlattenHeaders(get func(string) string, out map[string]string) {
	for _, name := range scannedHeaders {
		if v := get(name); v != "" {
			out["header."+name] = v
		}
	}
}
