package descriptors

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
)

// CanonicalConfig returns the bytes that fingerprint a job's content.
//
// The config is a JSON object with the keys command, image, name and version.
// env is only included when it has entries, so an empty env hashes the same
// as an unset one. encoding/json sorts map keys, which makes the output
// independent of insertion order at every level. U+2028 and U+2029 are
// written raw rather than as \u escapes.
func CanonicalConfig(name, version, image string, command []string, env map[string]string) ([]byte, error) {
	if command == nil {
		command = []string{}
	}
	config := map[string]interface{}{
		"command": command,
		"image":   image,
		"name":    name,
		"version": version,
	}
	if len(env) > 0 {
		config["env"] = env
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(config); err != nil {
		return nil, err
	}
	return unescapeLineSeparators(bytes.TrimSuffix(buf.Bytes(), []byte("\n"))), nil
}

// unescapeLineSeparators turns the \u2028 and \u2029 escapes encoding/json
// always emits back into the raw characters. Escaped backslashes are skipped
// so a literal `\\u2028` in a string is left alone.
func unescapeLineSeparators(b []byte) []byte {
	if !bytes.Contains(b, []byte(`\u202`)) {
		return b
	}
	out := make([]byte, 0, len(b))
	for i := 0; i < len(b); i++ {
		if b[i] != '\\' || i+1 >= len(b) {
			out = append(out, b[i])
			continue
		}
		if b[i+1] == 'u' && i+5 < len(b) && string(b[i+2:i+5]) == "202" && (b[i+5] == '8' || b[i+5] == '9') {
			if b[i+5] == '8' {
				out = append(out, "\u2028"...)
			} else {
				out = append(out, "\u2029"...)
			}
			i += 5
			continue
		}
		out = append(out, b[i], b[i+1])
		i++
	}
	return out
}

// SHA1Hex returns the lowercase hex SHA-1 digest of b.
func SHA1Hex(b []byte) string {
	sum := sha1.Sum(b)
	return hex.EncodeToString(sum[:])
}

// ComputeJobID derives the id of a job from its content.
//
// The config digest is folded together with name and version and hashed a
// second time, so jobs with identical config but different name or version
// never share an id.
func ComputeJobID(name, version, image string, command []string, env map[string]string) JobID {
	config, err := CanonicalConfig(name, version, image, command, env)
	if err != nil {
		// Only strings are encoded, which cannot fail.
		panic(err)
	}
	input := name + ":" + version + ":" + SHA1Hex(config)
	return JobID{name: name, version: version, hash: SHA1Hex([]byte(input))}
}
