// Package models contains GORM persistence models for the report tables.
// They are separate from the domain summaries to keep the domain layer free
// of ORM concerns; the report sink maps between the two.
//
// Tables:
// - report_daily_summaries: one row per business day
// - report_daily_subcategories: the day's net sales per sub-category
// - report_category_rows: the day's category report, TOTAL row included
package models
