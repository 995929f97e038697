package unit

// Помощники для извлечения типизированных значений из opaque input.

// GetString извлекает строковое значение.
func GetString(input map[string]any, key string) string {
	if v, ok := input[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// GetInt извлекает числовое значение.
func GetInt(input map[string]any, key string) int {
	if v, ok := input[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case int64:
			return int(n)
		case float64:
			return int(n)
		}
	}
	return 0
}

// GetFloat извлекает значение с плавающей точкой.
func GetFloat(input map[string]any, key string) float64 {
	if v, ok := input[key]; ok {
		switch n := v.(type) {
		case float64:
			return n
		case int:
			return float64(n)
		case int64:
			return float64(n)
		}
	}
	return 0
}

// GetBool извлекает булево значение.
func GetBool(input map[string]any, key string, defaultVal bool) bool {
	if v, ok := input[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return defaultVal
}

// GetMap извлекает вложенный map.
func GetMap(input map[string]any, key string) map[string]any {
	if v, ok := input[key]; ok {
		if m, ok := v.(map[string]any); ok {
			return m
		}
	}
	return nil
}

// GetStringSlice извлекает список строк.
func GetStringSlice(input map[string]any, key string) []string {
	v, ok := input[key]
	if !ok {
		return nil
	}

	switch items := v.(type) {
	case []string:
		return items
	case []any:
		result := make([]string, 0, len(items))
		for _, item := range items {
			if s, ok := item.(string); ok {
				result = append(result, s)
			}
		}
		return result
	default:
		return nil
	}
}
