package txn

import (
	"fmt"

	"github.com/fardream/go-bcs/bcs"
)

// Pure transaction arguments are BCS-encoded: u64 as 8 little-endian
// bytes, strings as a ULEB128 byte length followed by UTF-8 bytes, and
// vectors as a ULEB128 element count followed by the encoded elements.
// The contract declares the argument types; these helpers only cover the
// scalars the suis3 contract actually takes.

func encodeU64(v uint64) []byte {
	return mustMarshal(v)
}

func encodeString(s string) []byte {
	return mustMarshal(s)
}

func encodeStringVector(ss []string) []byte {
	if ss == nil {
		ss = []string{}
	}
	return mustMarshal(ss)
}

// mustMarshal panics on a marshal failure. The codec only fails on types
// it cannot represent; the fixed scalar and vector shapes above are
// always representable.
func mustMarshal(v any) []byte {
	b, err := bcs.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("bcs marshal %T: %v", v, err))
	}
	return b
}
