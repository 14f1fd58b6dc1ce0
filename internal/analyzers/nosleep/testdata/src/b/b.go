// Code generated by hand for the analyzer test. DO NOT EDIT.

package b

import "time"

func wait() {
	time.Sleep(time.Millisecond)
}
