package replay

import "fmt"

func pointerKey(v interface{}) string {
	return fmt.Sprintf("%p", v)
}
