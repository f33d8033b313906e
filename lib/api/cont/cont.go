package cont

import "context"

type ctxKey string

const operatorKey ctxKey = "operator"

// PutOperator stores the authenticated operator name for the request.
func PutOperator(c context.Context, name string) context.Context {
	return context.WithValue(c, operatorKey, name)
}

func GetOperator(c context.Context) string {
	name, ok := c.Value(operatorKey).(string)
	if !ok {
		return ""
	}
	return name
}
