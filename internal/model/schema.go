package model

// SchemaFact 对应 information_schema.columns 中的一行 (表名, 列名, 类型)。
type SchemaFact struct {
	Table    string `gorm:"column:table_name" json:"tableName"`
	Column   string `gorm:"column:column_name" json:"columnName"`
	DataType string `gorm:"column:data_type" json:"dataType"`
}
