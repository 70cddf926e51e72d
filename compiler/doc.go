/*

Process of lowering

Go Source ->
	gossa.Load ->
Block Graph (ir) ->
	flatten.Flatten ->
Instruction Stream (ssa) ->
	format.Format ->
Listing Text

Listing Text ->
	format.Parse ->
Instruction Stream (ssa)

*/
package compiler
