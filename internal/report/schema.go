package report

// ValidateResultsOutput checks a decoded JSON document against the
// ResultsOutput layout and returns every violation found.
func ValidateResultsOutput(data interface{}) []string {
	obj, ok := data.(map[string]interface{})
	if !ok {
		return []string{"Input must be an object"}
	}

	var errs []string
	if !isString(obj["schemaVersion"]) {
		errs = append(errs, "Missing or invalid schema_version (must be string)")
	}
	if !isString(obj["timestamp"]) {
		errs = append(errs, "Missing or invalid timestamp (must be ISO string)")
	}

	if opts, ok := obj["options"].(map[string]interface{}); !ok {
		errs = append(errs, "Missing or invalid options (must be object)")
	} else {
		if !isArray(opts["tokenizers"]) {
			errs = append(errs, "options.tokenizers must be an array")
		}
		if v, present := opts["maxMb"]; present && !isNumber(v) {
			errs = append(errs, "options.maxMb must be a number")
		}
	}

	if !isArray(obj["results"]) {
		errs = append(errs, "Missing or invalid results (must be array)")
	}

	if summary, ok := obj["summary"].(map[string]interface{}); !ok {
		errs = append(errs, "Missing or invalid summary (must be object)")
	} else {
		for _, field := range []string{"total", "success", "failed"} {
			if !isNumber(summary[field]) {
				errs = append(errs, "summary."+field+" must be a number")
			}
		}
	}
	return errs
}

func isString(v interface{}) bool {
	_, ok := v.(string)
	return ok
}

func isArray(v interface{}) bool {
	_, ok := v.([]interface{})
	return ok
}

func isNumber(v interface{}) bool {
	_, ok := v.(float64)
	return ok
}
